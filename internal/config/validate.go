// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the server settings and every instance. All problems are
// reported at once, instances in name order.
func Validate(cfg *domain.Config) error {
	var errs []error

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", cfg.Port))
	}
	if cfg.Web.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("web.rateLimit %d must not be negative", cfg.Web.RateLimit))
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.Instances)) {
		if err := validateInstance(cfg.Instances[name]); err != nil {
			errs = append(errs, fmt.Errorf("instance %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func validateInstance(instance domain.InstanceConfig) error {
	if instance.Client != "" && !instance.Client.Valid() {
		if suggestion := suggestClient(string(instance.Client)); suggestion != "" {
			return fmt.Errorf("%w %q, did you mean %q?", clients.ErrUnsupportedClient, instance.Client, suggestion)
		}
		return fmt.Errorf("%w %q", clients.ErrUnsupportedClient, instance.Client)
	}

	err := validate.Struct(instance)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	errs := make([]error, 0, len(validationErrs))
	for _, fe := range validationErrs {
		switch fe.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s is required", fe.Field()))
		default:
			errs = append(errs, fmt.Errorf("%s %v does not satisfy %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param()))
		}
	}
	return errors.Join(errs...)
}

// suggestClient returns the supported client closest to value, or "" when
// nothing is close enough
func suggestClient(value string) string {
	targets := make([]string, 0, len(domain.ClientTypes))
	for _, t := range domain.ClientTypes {
		targets = append(targets, t.String())
	}

	if ranks := fuzzy.RankFindNormalizedFold(value, targets); len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	value = strings.ToLower(value)
	best, bestDistance := "", -1
	for _, target := range targets {
		d := fuzzy.LevenshteinDistance(value, target)
		if bestDistance < 0 || d < bestDistance {
			best, bestDistance = target, d
		}
	}

	if bestDistance > len(best)/2 {
		return ""
	}
	return best
}
