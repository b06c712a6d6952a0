package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/seongkah/signing-for-paas-sub002/internal/alerting"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.ConfigVersion != 1 {
		v.Add("configVersion must be 1")
	}

	if c.Signer.Endpoint == "" {
		v.Add("signer.endpoint is required")
	} else if err := validateURL(c.Signer.Endpoint); err != nil {
		v.Add("signer.endpoint invalid: %v", err)
	}
	if c.Signer.VersionEndpoint != "" {
		if err := validateURL(c.Signer.VersionEndpoint); err != nil {
			v.Add("signer.versionEndpoint invalid: %v", err)
		}
	}

	if len(c.Baseline.TestURLs) == 0 {
		v.Add("baseline.testUrls must not be empty")
	}
	for i, u := range c.Baseline.TestURLs {
		if err := validateURL(u); err != nil {
			v.Add("baseline.testUrls[%d] invalid: %v", i, err)
		}
	}

	for i, u := range c.WebClient.URLs {
		if err := validateURL(u); err != nil {
			v.Add("webClient.urls[%d] invalid: %v", i, err)
		}
	}
	for name, patterns := range c.WebClient.Categories {
		if len(patterns) == 0 {
			v.Add("webClient.categories.%s must not be empty", name)
		}
		for _, p := range patterns {
			if _, err := regexp.Compile(p); err != nil {
				v.Add("webClient.categories.%s pattern %q invalid: %v", name, p, err)
			}
		}
	}

	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}

	ruleIDs := map[string]struct{}{}
	for i, rule := range c.Alerts {
		if rule.ID == "" {
			v.Add("alerts[%d].id is required", i)
		} else if _, exists := ruleIDs[rule.ID]; exists {
			v.Add("alerts[%d].id %q is duplicated", i, rule.ID)
		} else {
			ruleIDs[rule.ID] = struct{}{}
		}

		if !alerting.ValidCondition(rule.Type) {
			v.Add("alerts[%d].type must be one of %s", i, strings.Join(alerting.ConditionTypes, "|"))
		}
		if rule.Threshold <= 0 {
			v.Add("alerts[%d].threshold must be > 0", i)
		}
		if rule.Type != alerting.ConditionConsecutiveFailures && rule.Window <= 0 {
			v.Add("alerts[%d].window must be > 0", i)
		}
		if rule.Cooldown < 0 {
			v.Add("alerts[%d].cooldown must be >= 0", i)
		}
		switch rule.Severity {
		case SeverityInfo, SeverityWarning, SeverityCritical:
		default:
			v.Add("alerts[%d].severity must be info|warning|critical", i)
		}
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("must include scheme and host")
	}
	return nil
}
