package playbook

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// uriSchemeRegex matches a leading URI scheme such as https:// or s3://.
var uriSchemeRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

func deltaValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterStructValidation(func(sl validator.StructLevel) {
			delta := sl.Current().Interface().(Delta)

			switch delta.Type {
			case TypeReference:
				if !uriSchemeRegex.MatchString(delta.Payload) {
					sl.ReportError(delta.Payload, "Payload", "payload", "uri_scheme", "")
				}
			case TypeSkill:
				if delta.Name == "" {
					sl.ReportError(delta.Name, "Name", "name", "required", "")
				}
			case TypeConstraint, TypeClarification:
				// Non-empty payload is enforced by the field tag.
			}
		}, Delta{})
	})
	return validate
}

// validateDelta applies the structural rules for one delta: the type
// must be one of the four enumerated kinds, payload text must be
// non-empty, reference payloads need a URI scheme prefix, and a skill
// delta's generated name must not collide with an accepted skill name.
func validateDelta(delta Delta, existingSkills map[string]bool) error {
	if err := deltaValidator().Struct(delta); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.ValidationFailed, "delta failed structural validation"),
			errors.Fields{"delta_type": string(delta.Type)},
		)
	}

	if delta.Type == TypeSkill && existingSkills[delta.Name] {
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "skill name collides with accepted skill"),
			errors.Fields{"skill_name": delta.Name},
		)
	}

	return nil
}
