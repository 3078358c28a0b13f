package identity

import "testing"

func TestOwnerName(t *testing.T) {
	tests := []struct {
		name    string
		arn     string
		want    string
		wantErr bool
	}{
		{"IAM user", "arn:aws:iam::123456789012:user/ryan", "ryan", false},
		{"IAM user with path", "arn:aws:iam::123456789012:user/engineering/Ryan.Smith", "ryan-smith", false},
		{"SSO assumed role", "arn:aws:sts::123456789012:assumed-role/AWSReservedSSO_Admin_abc/jane.doe@example.com", "jane-doe", false},
		{"federated session", "arn:aws:sts::123456789012:federated-user/CI_Runner", "ci-runner", false},
		{"root", "arn:aws:iam::123456789012:root", "root", false},
		{"GovCloud partition", "arn:aws-us-gov:iam::123456789012:user/ops", "ops", false},
		{"not an ARN", "ryan", "", true},
		{"empty", "", "", true},
		{"symbols only", "arn:aws:iam::123456789012:user/@@@", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OwnerName(tt.arn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("OwnerName(%q) = %q, want error", tt.arn, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("OwnerName(%q) error: %v", tt.arn, err)
			}
			if got != tt.want {
				t.Errorf("OwnerName(%q) = %q, want %q", tt.arn, got, tt.want)
			}
		})
	}
}
