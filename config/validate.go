package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError reports an invalid or missing configuration field.
type FieldError struct {
	// Field is the dotted path of the offending field.
	Field string

	// Reason describes what is wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// DuplicateKeyError is returned when two declared items of one kind share
// a match key.
type DuplicateKeyError struct {
	// Kind is the resource kind, e.g. "dataSources".
	Kind string

	// Keys lists every duplicated match key.
	Keys []string
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("config: duplicate %s: %s", e.Kind, strings.Join(e.Keys, ", "))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration without contacting any remote service.
// All problems found are joined into the returned error.
func (s *Spec) Validate() error {
	var errs []error

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: validate: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, &FieldError{Field: fieldPath(fe), Reason: reason(fe)})
		}
	}

	errs = append(errs, s.checkDuplicates()...)
	errs = append(errs, s.checkAuth()...)

	for _, ds := range s.DataSources {
		if _, err := ds.Settings(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range s.Resolvers {
		switch {
		case r.IsPipeline() && len(r.Functions) == 0:
			errs = append(errs, &FieldError{Field: "resolvers." + r.Key() + ".functions", Reason: "required for PIPELINE resolvers"})
		case r.IsPipeline() && r.DataSource != "":
			errs = append(errs, &FieldError{Field: "resolvers." + r.Key() + ".dataSource", Reason: "not allowed for PIPELINE resolvers"})
		case !r.IsPipeline() && r.DataSource == "":
			errs = append(errs, &FieldError{Field: "resolvers." + r.Key() + ".dataSource", Reason: "required"})
		}
	}

	return errors.Join(errs...)
}

func (s *Spec) checkDuplicates() []error {
	var errs []error
	check := func(kind string, keys []string) {
		if dups := DuplicateKeys(keys); len(dups) > 0 {
			errs = append(errs, &DuplicateKeyError{Kind: kind, Keys: dups})
		}
	}

	keys := make([]string, 0, len(s.DataSources))
	for _, ds := range s.DataSources {
		keys = append(keys, ds.Key())
	}
	check("dataSources", keys)

	keys = keys[:0]
	for _, r := range s.Resolvers {
		keys = append(keys, r.Key())
	}
	check("resolvers", keys)

	keys = keys[:0]
	for _, f := range s.Functions {
		keys = append(keys, f.Key())
	}
	check("functions", keys)

	keys = keys[:0]
	for _, k := range s.APIKeys {
		keys = append(keys, k.Name)
	}
	check("apiKeys", keys)
	return errs
}

func (s *Spec) checkAuth() []error {
	var errs []error
	check := func(path, authType string, up *UserPoolConfig, oidc *OIDCConfig) {
		if authType == AuthUserPools && up == nil {
			errs = append(errs, &FieldError{Field: path + ".userPoolConfig", Reason: "required for " + AuthUserPools})
		}
		if authType == AuthOpenIDConnect && oidc == nil {
			errs = append(errs, &FieldError{Field: path + ".openIdConnectConfig", Reason: "required for " + AuthOpenIDConnect})
		}
	}
	check("api", s.AuthenticationType, s.UserPoolConfig, s.OpenIDConnectConfig)

	apiKeyAuth := s.AuthenticationType == AuthAPIKey
	for i, p := range s.AdditionalAuthenticationProviders {
		check(fmt.Sprintf("additionalAuthenticationProviders[%d]", i), p.AuthenticationType, p.UserPoolConfig, p.OpenIDConnectConfig)
		if p.AuthenticationType == AuthAPIKey {
			apiKeyAuth = true
		}
	}
	if len(s.APIKeys) > 0 && !apiKeyAuth {
		errs = append(errs, &FieldError{Field: "apiKeys", Reason: "API keys need API_KEY authorization"})
	}
	return errs
}

// DuplicateKeys returns every key that appears more than once, in order of
// first repetition.
func DuplicateKeys(keys []string) []string {
	seen := make(map[string]int, len(keys))
	var dups []string
	for _, k := range keys {
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	return dups
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}
