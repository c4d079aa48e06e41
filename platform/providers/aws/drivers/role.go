package drivers

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/GoCodeAlone/appsyncctl/config"
	"github.com/GoCodeAlone/appsyncctl/platform"
)

// appSyncPrincipal is the service principal allowed to assume the role.
const appSyncPrincipal = "appsync.amazonaws.com"

var esEndpoint = regexp.MustCompile(`^https://([a-z0-9\-]+\.\w{2}\-[a-z]+\-\d\.es\.amazonaws\.com)$`)

// roleTypes fixes the order in which per-type statements are emitted.
var roleTypes = []string{
	config.DataSourceLambda,
	config.DataSourceDynamoDB,
	config.DataSourceElasticsearch,
	config.DataSourceRelationalDB,
}

// RoleProvisioner derives the least-privilege policy for data sources that
// declare no role of their own and provisions a role carrying it.
type RoleProvisioner struct {
	identity *IAMIdentityProvisioner
	sts      STSClient

	mu      sync.Mutex
	account string
}

// NewRoleProvisioner creates a RoleProvisioner. sts is only called when a
// statement needs the account id and the configuration does not supply it.
func NewRoleProvisioner(identity *IAMIdentityProvisioner, stsClient STSClient) *RoleProvisioner {
	return &RoleProvisioner{identity: identity, sts: stsClient}
}

// RoleName returns the name of the role provisioned for an API.
func RoleName(apiName string) string { return apiName + "-role" }

// PolicyName returns the name of the inline policy of the provisioned role.
func PolicyName(apiName string) string { return apiName + "-policy" }

// Provision returns the role that unbound data sources should use. It is
// nil when every data source brings its own role, and an external record
// when the configuration names a shared role.
func (p *RoleProvisioner) Provision(ctx context.Context, obs platform.Observer, spec *config.Spec, _ *platform.RoleRecord) (*platform.RoleRecord, error) {
	if spec.ServiceRoleArn != "" {
		return &platform.RoleRecord{RoleArn: spec.ServiceRoleArn, External: true}, nil
	}

	statements, err := Statements(spec, func() (string, error) { return p.accountID(ctx, spec) })
	if err != nil {
		return nil, err
	}
	if len(statements) == 0 {
		return nil, nil
	}

	roleName, policyName := RoleName(spec.Name), PolicyName(spec.Name)
	arn, err := p.identity.Ensure(ctx, obs, roleName, policyName, appSyncPrincipal, PolicyDocument{
		Version:   policyVersion,
		Statement: statements,
	})
	if err != nil {
		return nil, err
	}
	return &platform.RoleRecord{RoleName: roleName, RoleArn: arn, PolicyName: policyName}, nil
}

// Remove deletes a role created by Provision. External roles are left alone.
func (p *RoleProvisioner) Remove(ctx context.Context, obs platform.Observer, role platform.RoleRecord) error {
	if role.External || role.RoleName == "" {
		return nil
	}
	return p.identity.Remove(ctx, obs, role.RoleName, role.PolicyName)
}

func (p *RoleProvisioner) accountID(ctx context.Context, spec *config.Spec) (string, error) {
	if spec.AccountID != "" {
		return spec.AccountID, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.account != "" {
		return p.account, nil
	}
	if p.sts == nil {
		return "", fmt.Errorf("sts: account id unknown and no STS client configured")
	}
	out, err := p.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("sts: get caller identity: %w", err)
	}
	p.account = deref(out.Account)
	return p.account, nil
}

// Statements builds one policy statement set per data source type from the
// data sources without a role of their own. Identical configs are counted
// once. lookupAccount supplies the account id when a source does not
// carry one.
func Statements(spec *config.Spec, lookupAccount func() (string, error)) ([]Statement, error) {
	byType := make(map[string][]config.Settings)
	seen := make(map[string][]map[string]any)
	for _, ds := range spec.DataSources {
		if ds.ServiceRoleArn != "" || !ds.NeedsRole() {
			continue
		}
		settings, err := ds.Settings()
		if err != nil {
			return nil, err
		}
		dup := false
		for _, c := range seen[ds.Type] {
			if reflect.DeepEqual(c, ds.Config) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[ds.Type] = append(seen[ds.Type], ds.Config)
		byType[ds.Type] = append(byType[ds.Type], settings)
	}

	account := func(s config.Settings) (string, error) {
		if a := s.AccountID(); a != "" {
			return a, nil
		}
		if spec.AccountID != "" {
			return spec.AccountID, nil
		}
		return lookupAccount()
	}
	region := func(s config.Settings) string { return firstNonEmpty(s.Region(), spec.Region) }

	var statements []Statement
	for _, typ := range roleTypes {
		configs := byType[typ]
		if len(configs) == 0 {
			continue
		}
		switch typ {
		case config.DataSourceLambda:
			var res []string
			for _, s := range configs {
				res = append(res, s.Lambda.FunctionArn, s.Lambda.FunctionArn+":*")
			}
			statements = append(statements, allow([]string{"lambda:invokeFunction"}, res))

		case config.DataSourceDynamoDB:
			var res []string
			for _, s := range configs {
				acct, err := account(s)
				if err != nil {
					return nil, err
				}
				table := fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", region(s), acct, s.DynamoDB.TableName)
				res = append(res, table, table+"/*")
			}
			statements = append(statements, allow([]string{
				"dynamodb:DeleteItem",
				"dynamodb:GetItem",
				"dynamodb:PutItem",
				"dynamodb:Query",
				"dynamodb:Scan",
				"dynamodb:UpdateItem",
				"dynamodb:BatchGetItem",
				"dynamodb:BatchWriteItem",
			}, res))

		case config.DataSourceElasticsearch:
			var res []string
			for _, s := range configs {
				domain, err := DomainName(s.Elasticsearch.Endpoint)
				if err != nil {
					return nil, err
				}
				acct, err := account(s)
				if err != nil {
					return nil, err
				}
				arn := fmt.Sprintf("arn:aws:es:%s:%s:domain/%s", region(s), acct, domain)
				res = append(res, arn, arn+"/*")
			}
			statements = append(statements, allow([]string{
				"es:ESHttpDelete",
				"es:ESHttpGet",
				"es:ESHttpHead",
				"es:ESHttpPost",
				"es:ESHttpPut",
			}, res))

		case config.DataSourceRelationalDB:
			var clusters, secrets []string
			for _, s := range configs {
				acct, err := account(s)
				if err != nil {
					return nil, err
				}
				cluster := fmt.Sprintf("arn:aws:rds:%s:%s:cluster:%s", region(s), acct, s.RelationalDB.DBClusterIdentifier)
				clusters = append(clusters, cluster, cluster+":*")
				secrets = append(secrets, s.RelationalDB.AwsSecretStoreArn, s.RelationalDB.AwsSecretStoreArn+":*")
			}
			statements = append(statements,
				allow([]string{
					"rds-data:DeleteItems",
					"rds-data:ExecuteSql",
					"rds-data:GetItems",
					"rds-data:InsertItems",
					"rds-data:UpdateItems",
				}, clusters),
				allow([]string{"secretsmanager:GetSecretValue"}, secrets),
			)
		}
	}
	return statements, nil
}

// DomainName derives the Elasticsearch domain name from a domain endpoint
// such as https://search-posts-abc123.us-east-1.es.amazonaws.com.
func DomainName(endpoint string) (string, error) {
	m := esEndpoint.FindStringSubmatch(endpoint)
	if m == nil {
		return "", &config.FieldError{Field: "dataSources.config.endpoint", Reason: fmt.Sprintf("%q is not an Elasticsearch domain endpoint", endpoint)}
	}
	label, _, _ := strings.Cut(m[1], ".")
	label = strings.TrimPrefix(label, "search-")
	label = strings.TrimPrefix(label, "vpc-")
	if i := strings.LastIndex(label, "-"); i > 0 {
		label = label[:i]
	}
	return label, nil
}

func allow(actions, resources []string) Statement {
	return Statement{Effect: "Allow", Action: actions, Resource: resources}
}

var _ platform.RoleProvisioner = (*RoleProvisioner)(nil)
