// pattern: Imperative Shell

package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"bunshinctl/internal/stack"
)

// Form state accessors for testing and view rendering.

// IsFormOpen returns true if the new-stack form is open.
func (m Model) IsFormOpen() bool {
	return m.form.open
}

// FormError returns the transient validation error, if any.
func (m Model) FormError() string {
	return m.form.err
}

// FormTemplateName returns the name of the selected template.
func (m Model) FormTemplateName() string {
	if m.form.templateIdx == 0 || m.form.templateIdx > len(m.templates) {
		return "default"
	}
	return m.templates[m.form.templateIdx-1].Name
}

// openForm opens the new-stack form.
func (m *Model) openForm() tea.Cmd {
	m.form.open = true
	m.form.err = ""
	m.form.templateIdx = 0
	m.form.submitting = false
	m.form.input.Reset()
	return m.form.input.Focus()
}

// resetForm closes the form and clears its state.
func (m *Model) resetForm() {
	m.form.open = false
	m.form.err = ""
	m.form.templateIdx = 0
	m.form.submitting = false
	m.form.input.Reset()
	m.form.input.Blur()
}

// setFormError shows err until it is replaced or two seconds pass.
func (m *Model) setFormError(err error) tea.Cmd {
	m.form.err = formErrorText(err)
	m.form.errSeq++
	return tickAfter(feedbackTime, formErrResetMsg{seq: m.form.errSeq})
}

// formErrorText is the form's wording for name validation errors.
func formErrorText(err error) string {
	switch {
	case errors.Is(err, stack.ErrNameRequired):
		return "Stack name is required!"
	case errors.Is(err, stack.ErrNameInvalid):
		return "Use only letters, numbers, dashes, and underscores"
	}
	return err.Error()
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form.submitting {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEscape:
		m.resetForm()
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		n := len(m.templates) + 1
		if msg.Type == tea.KeyUp {
			m.form.templateIdx = (m.form.templateIdx + n - 1) % n
		} else {
			m.form.templateIdx = (m.form.templateIdx + 1) % n
		}
		return m, nil

	case tea.KeyEnter:
		name, err := stack.ValidateName(m.form.input.Value())
		if err != nil {
			m.logger.Debug("stack name rejected", "input", m.form.input.Value(), "error", err)
			return m, m.setFormError(err)
		}
		def, err := m.defaultDefinition(name)
		if err != nil {
			m.logger.Error("render template failed", "template", m.FormTemplateName(), "error", err)
			return m, m.setFormError(err)
		}
		m.logger.Info("creating stack", "stack", name, "template", m.FormTemplateName())
		m.form.submitting = true
		m.submit(m.createStackJob(name, def))
		return m, nil
	}

	var cmd tea.Cmd
	m.form.input, cmd = m.form.input.Update(msg)
	return m, cmd
}

