package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/analyticshub/gatekeeper/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AWSSESAlertService emails the security team when the guard blacklists an
// IP. Sends are best-effort: the guard logs failures but the login decision
// never depends on the email going out.
type AWSSESAlertService struct {
	sesClient       *ses.Client
	fromAddress     string
	securityAddress string
	logger          *slog.Logger
}

// NewAWSSESAlertService creates a new AWS SES alert service
func NewAWSSESAlertService(region, fromAddress, securityAddress string, logger *slog.Logger) (*AWSSESAlertService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESAlertService{
		sesClient:       ses.NewFromConfig(cfg),
		fromAddress:     fromAddress,
		securityAddress: securityAddress,
		logger:          logger,
	}, nil
}

// SendBlacklistAlert notifies the security address about a new blacklist entry.
func (s *AWSSESAlertService) SendBlacklistAlert(ctx context.Context, entry *models.BlacklistEntry) error {
	expires := "never"
	if entry.ExpiresAt != nil {
		expires = entry.ExpiresAt.UTC().Format(time.RFC3339)
	}

	attemptedEmail := "n/a"
	if entry.AttemptedEmail != nil {
		attemptedEmail = *entry.AttemptedEmail
	}

	subject := fmt.Sprintf("[gatekeeper] IP %s blacklisted", entry.IPAddress)
	textBody := fmt.Sprintf(`An IP address has been added to the login blacklist.

IP address:      %s
Reason:          %s
Blocked by:      %s
Attempted email: %s
Failed attempts: %d
Blocked at:      %s
Expires:         %s

Review the login attempt ledger for this IP before lifting the block.
`,
		entry.IPAddress,
		entry.Reason,
		entry.BlockedBy,
		attemptedEmail,
		entry.AttemptCount,
		entry.BlockedAt.UTC().Format(time.RFC3339),
		expires,
	)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.securityAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send blacklist alert: %w", err)
	}

	s.logger.Info("blacklist alert sent",
		slog.String("ip_address", entry.IPAddress),
		slog.String("to", s.securityAddress))

	return nil
}
