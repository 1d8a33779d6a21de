package prompt

import (
	"github.com/manifoldco/promptui"
)

// Input prompts for a line of text. The default value is pre-filled and
// editable, which suits values like quota strings where the operator
// usually tweaks a suggestion rather than typing from scratch.
func Input(label string, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:     label,
		Default:   defaultValue,
		AllowEdit: true,
	}

	result, err := p.Run()
	return result, wrapError(err)
}

// InputWithValidation prompts for a line of text and re-prompts until
// validate accepts it. Used for fields with a required shape, such as
// account email addresses.
func InputWithValidation(label string, validate func(string) error) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Validate: validate,
	}

	result, err := p.Run()
	return result, wrapError(err)
}
