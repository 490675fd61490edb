package spec

import (
	"strings"

	appErr "swfdiff/pkg/errors"

	"github.com/google/shlex"
)

// BuildCommand splits a command template with shell quoting rules and then
// expands {name} placeholders inside each field, so substituted paths never
// get re-split.
func BuildCommand(tpl string, vars map[string]string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.ConfigInvalid).WithMessage("command template is required")
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigInvalid, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.ConfigInvalid).WithMessage("command is empty after parsing")
	}
	for i, f := range fields {
		for name, value := range vars {
			f = strings.ReplaceAll(f, "{"+name+"}", value)
		}
		fields[i] = f
	}
	return fields, nil
}
