package prompt

import (
	"strings"

	"github.com/manifoldco/promptui"
)

// SelectOption is one entry in a selection list. Description, when set,
// is rendered in a detail pane below the list; the account picker uses
// it to show quota usage alongside each account.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Select prompts the user to pick one option and returns its Value.
// Lists longer than the visible window can be filtered by pressing "/"
// and typing part of a label.
func Select(label string, options []SelectOption) (string, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label | white }}",
		Selected: "* {{ .Label | green }}",
	}
	if hasDescriptions(options) {
		templates.Details = `
{{ "Description:" | faint }}	{{ .Description }}`
	}

	p := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: templates,
		Size:      10,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(options[index].Label), strings.ToLower(input))
		},
	}

	i, _, err := p.Run()
	if err != nil {
		return "", wrapError(err)
	}

	return options[i].Value, nil
}

func hasDescriptions(options []SelectOption) bool {
	for _, opt := range options {
		if opt.Description != "" {
			return true
		}
	}
	return false
}
