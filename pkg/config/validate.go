// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	stderrors "errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jllopis/docket/pkg/errors"
)

var validate = validator.New()

// Validate checks cfg against its struct tags and reports every failing
// field in one CodeInvalidInput error.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.New(errors.CodeInvalidInput, "invalid configuration", err)
	}
	fields := FieldErrors(verrs)
	return errors.New(errors.CodeInvalidInput, "invalid configuration: "+strings.Join(fields, "; "), nil).
		WithContext("fields", fields)
}

// FieldErrors renders validation failures as readable strings.
func FieldErrors(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, "field '"+fe.Namespace()+"' failed on the '"+fe.Tag()+"' tag")
	}
	return out
}
