// Package awsauth issues short-lived AWS credentials by assuming the bot's
// dedicated IAM role with an external id.
package awsauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/qacraft/testplanbot/internal/models"
)

// sessionNameLayout timestamps role session names for traceability in CloudTrail.
const sessionNameLayout = "2006-01-02_150405"

// Assumer issues temporary credentials for a fixed role ARN and external id.
type Assumer struct {
	client     *sts.Client
	roleARN    string
	externalID string
}

// NewAssumer creates an Assumer using the ambient AWS configuration chain.
func NewAssumer(ctx context.Context, roleARN, externalID, region string) (*Assumer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &Assumer{
		client:     sts.NewFromConfig(cfg),
		roleARN:    roleARN,
		externalID: externalID,
	}, nil
}

// Issue assumes the role and returns its temporary session credentials.
func (a *Assumer) Issue(ctx context.Context) (models.SessionCredentials, error) {
	sessionName := "TestPlanCreatorSession" + time.Now().Format(sessionNameLayout)
	slog.Debug("Assumer.Issue: assuming role", "roleARN", a.roleARN, "sessionName", sessionName)

	out, err := a.client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(a.roleARN),
		RoleSessionName: aws.String(sessionName),
		ExternalId:      aws.String(a.externalID),
	})
	if err != nil {
		slog.Error("Assumer.Issue: assume role failed", "error", err, "roleARN", a.roleARN)
		return models.SessionCredentials{}, fmt.Errorf("failed to assume role %s: %w", a.roleARN, err)
	}

	creds := models.SessionCredentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
	}
	if out.Credentials.Expiration != nil {
		creds.Expiration = *out.Credentials.Expiration
	}
	slog.Info("Assumer.Issue: temporary credentials issued", "roleARN", a.roleARN, "expiration", creds.Expiration)
	return creds, nil
}

// StaticIssuer returns fixed credentials on every call. It backs model
// providers that carry their own authentication and need no role assumption.
type StaticIssuer struct {
	Creds models.SessionCredentials
}

// Issue returns the configured credentials.
func (s *StaticIssuer) Issue(ctx context.Context) (models.SessionCredentials, error) {
	return s.Creds, nil
}
