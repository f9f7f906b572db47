package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
)

// OrgAccount is an AWS account enumerated from AWS Organizations.
type OrgAccount struct {
	ID    string // e.g. "123456789012"
	Name  string
	Email string
}

// ListOrgAccounts enumerates active accounts in the AWS Organization using
// the default credential chain (management account credentials).
func ListOrgAccounts(ctx context.Context) ([]OrgAccount, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	client := organizations.NewFromConfig(cfg)
	var accounts []OrgAccount

	paginator := organizations.NewListAccountsPaginator(client, &organizations.ListAccountsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, acct := range page.Accounts {
			if acct.Status != orgtypes.AccountStatusActive {
				continue
			}
			accounts = append(accounts, OrgAccount{
				ID:    awssdk.ToString(acct.Id),
				Name:  awssdk.ToString(acct.Name),
				Email: awssdk.ToString(acct.Email),
			})
		}
	}

	return accounts, nil
}
