package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/GoCodeAlone/appsyncctl/platform"
)

// policyVersion is the IAM policy language version.
const policyVersion = "2012-10-17"

// PolicyDocument is an IAM policy.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is one IAM policy statement.
type Statement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

// IAMIdentityProvisioner manages a role and its inline policy.
type IAMIdentityProvisioner struct {
	client IAMClient
}

// NewIAMIdentityProvisioner creates an identity provisioner.
func NewIAMIdentityProvisioner(client IAMClient) *IAMIdentityProvisioner {
	return &IAMIdentityProvisioner{client: client}
}

// Ensure creates the role if missing, trusting service, and makes its
// inline policy equal to policy. It returns the role ARN.
func (p *IAMIdentityProvisioner) Ensure(ctx context.Context, obs platform.Observer, roleName, policyName, service string, policy PolicyDocument) (string, error) {
	arn, created, err := p.ensureRole(ctx, obs, roleName, service)
	if err != nil {
		return "", err
	}

	want, err := json.Marshal(policy)
	if err != nil {
		return "", fmt.Errorf("iam: marshal policy %q: %w", policyName, err)
	}

	if !created {
		out, err := p.client.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
			RoleName:   awsv2.String(roleName),
			PolicyName: awsv2.String(policyName),
		})
		switch {
		case err == nil:
			if samePolicy(deref(out.PolicyDocument), want) {
				obs.Applied(ctx, platform.KindRole, roleName, platform.ActionIgnore, nil)
				return arn, nil
			}
		case !platform.IsNotFound(err):
			return "", fmt.Errorf("iam: get role policy %q: %w", policyName, err)
		}
	}

	_, err = p.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       awsv2.String(roleName),
		PolicyName:     awsv2.String(policyName),
		PolicyDocument: awsv2.String(string(want)),
	})
	if err != nil {
		return "", fmt.Errorf("iam: put role policy %q: %w", policyName, err)
	}
	action := platform.ActionUpdate
	if created {
		action = platform.ActionCreate
	}
	obs.Applied(ctx, platform.KindRole, roleName, action, []platform.DiffEntry{{Path: "policy", NewValue: policyName}})
	return arn, nil
}

// Remove deletes the inline policy and then the role. Either being gone
// already is not an error.
func (p *IAMIdentityProvisioner) Remove(ctx context.Context, obs platform.Observer, roleName, policyName string) error {
	if policyName != "" {
		_, err := p.client.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   awsv2.String(roleName),
			PolicyName: awsv2.String(policyName),
		})
		if err != nil && !platform.IsNotFound(err) {
			return fmt.Errorf("iam: delete role policy %q: %w", policyName, err)
		}
	}

	_, err := p.client.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: awsv2.String(roleName)})
	if err != nil {
		if platform.IsNotFound(err) {
			obs.Notice(ctx, "role already removed", "role", roleName)
			return nil
		}
		return fmt.Errorf("iam: delete role %q: %w", roleName, err)
	}
	obs.Applied(ctx, platform.KindRole, roleName, platform.ActionDelete, nil)
	return nil
}

func (p *IAMIdentityProvisioner) ensureRole(ctx context.Context, obs platform.Observer, roleName, service string) (arn string, created bool, err error) {
	out, err := p.client.GetRole(ctx, &iam.GetRoleInput{RoleName: awsv2.String(roleName)})
	if err == nil && out.Role != nil {
		return deref(out.Role.Arn), false, nil
	}
	if err != nil && !platform.IsNotFound(err) {
		return "", false, fmt.Errorf("iam: get role %q: %w", roleName, err)
	}

	trust, err := json.Marshal(assumeRolePolicy(service))
	if err != nil {
		return "", false, fmt.Errorf("iam: marshal trust policy: %w", err)
	}
	cout, err := p.client.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 awsv2.String(roleName),
		AssumeRolePolicyDocument: awsv2.String(string(trust)),
		Path:                     awsv2.String("/"),
	})
	if err != nil {
		return "", false, fmt.Errorf("iam: create role %q: %w", roleName, err)
	}
	if cout.Role == nil {
		return "", false, fmt.Errorf("iam: create role %q: empty response", roleName)
	}
	obs.Notice(ctx, "role created", "role", roleName)
	return deref(cout.Role.Arn), true, nil
}

func assumeRolePolicy(service string) PolicyDocument {
	return PolicyDocument{
		Version: policyVersion,
		Statement: []Statement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": service},
			Action:    []string{"sts:AssumeRole"},
		}},
	}
}

// samePolicy compares a policy document returned by IAM, which is URL
// encoded, against a marshalled policy, ignoring formatting.
func samePolicy(deployed string, want []byte) bool {
	if decoded, err := url.QueryUnescape(deployed); err == nil {
		deployed = decoded
	}
	var a, b any
	if json.Unmarshal([]byte(deployed), &a) != nil || json.Unmarshal(want, &b) != nil {
		return false
	}
	ca, _ := json.Marshal(a)
	cb, _ := json.Marshal(b)
	return string(ca) == string(cb)
}
