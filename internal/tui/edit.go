// Package tui hosts the task edit form in a terminal modal. It owns the
// widgets only; field state, validation, option resolution, and submission
// live in internal/form and internal/resolve.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"careboard/internal/domain"
	"careboard/internal/form"
	"careboard/internal/notify"
	"careboard/internal/resolve"
)

// EditField is the currently focused widget.
type EditField int

const (
	fieldTitle EditField = iota
	fieldPatient
	fieldExpertise
	fieldDescription
	fieldComplete
	fieldSubmit
	fieldCount
)

// TaskService is the remote surface the edit session needs: the record
// update call and the patient search call.
type TaskService interface {
	form.TaskUpdater
	SearchPatients(ctx context.Context, query string, limit int) ([]domain.PatientOption, error)
}

// Options configure one edit session. The host passes context explicitly:
// credential lives inside Service, Theme selects the palette, OnSuccess is
// invoked exactly once after a confirmed update.
type Options struct {
	Task      domain.Task
	Service   TaskService
	Theme     string
	Catalog   []string
	Knows     func(string) bool
	OnSuccess func(ctx context.Context) error
}

const optionLimit = 8

type resolveMsg resolve.Result[domain.PatientOption]

// submitDoneMsg carries the submission outcome back into the event loop. The
// command stages onto its own task copy; the confirmed record is applied to
// the model here, never from the command goroutine.
type submitDoneMsg struct {
	err  error
	task domain.Task
}

type statusKind int

const (
	statusNone statusKind = iota
	statusPending
	statusSuccess
	statusFailure
)

// Model is the bubbletea model for the edit modal.
type Model struct {
	opts      Options
	ctx       context.Context
	task      *domain.Task
	draft     *form.Draft
	submitter *form.Submitter
	search    *resolve.View[domain.PatientOption]

	focused   EditField
	title     textinput.Model
	patient   textinput.Model
	expertise textinput.Model
	desc      textarea.Model
	selection int

	status     statusKind
	statusMsg  string
	submitting bool
	closed     *atomic.Bool
	updated    bool
	styles    Styles
	width     int
}

// New builds an edit session seeded from the task snapshot in opts.
func New(ctx context.Context, opts Options) *Model {
	draft := form.NewDraft(opts.Task)
	if opts.Knows != nil {
		draft.AddRule(form.FieldExpertise, form.Vocabulary(form.FieldExpertise, opts.Knows))
	}
	task := opts.Task
	closed := &atomic.Bool{}
	onSuccess := opts.OnSuccess
	m := &Model{
		opts:   opts,
		ctx:    ctx,
		task:   &task,
		draft:  draft,
		closed: closed,
		styles: newStyles(opts.Theme),
		width:  72,
		search: resolve.NewView(func(ctx context.Context, query string) ([]domain.PatientOption, error) {
			return opts.Service.SearchPatients(ctx, query, optionLimit)
		}),
	}
	m.submitter = &form.Submitter{
		Service:  opts.Service,
		Reporter: notify.Silent{},
		OnSuccess: func(ctx context.Context) error {
			// Late completions for a closed session are dropped.
			if closed.Load() {
				return nil
			}
			if onSuccess != nil {
				return onSuccess(ctx)
			}
			return nil
		},
	}

	m.title = textinput.New()
	m.title.Prompt = ""
	m.title.Placeholder = "e.g. Schedule follow-up"
	m.title.SetValue(draft.Title())
	m.title.Focus()

	m.patient = textinput.New()
	m.patient.Prompt = ""
	m.patient.Placeholder = "type to search patients"
	m.patient.SetValue(draft.PatientToken())

	m.expertise = textinput.New()
	m.expertise.Prompt = ""
	m.expertise.Placeholder = strings.Join(firstN(opts.Catalog, 3), ", ")
	m.expertise.SetValue(draft.Expertise())

	m.desc = textarea.New()
	m.desc.Prompt = ""
	m.desc.Placeholder = "Details about the task"
	m.desc.ShowLineNumbers = false
	m.desc.SetHeight(3)
	m.desc.SetValue(draft.Description())

	return m
}

// Updated reports whether the record was mutated during the session.
func (m *Model) Updated() bool { return m.updated }

func (m *Model) Init() tea.Cmd {
	m.search.Search(m.ctx, "")
	return tea.Batch(textinput.Blink, m.awaitResolver())
}

func (m *Model) awaitResolver() tea.Cmd {
	return func() tea.Msg {
		return resolveMsg(<-m.search.Results())
	}
}

func (m *Model) submitCmd() tea.Cmd {
	ctx, draft, submitter := m.ctx, m.draft, m.submitter
	task := *m.task
	return func() tea.Msg {
		err := submitter.Submit(ctx, draft, &task)
		return submitDoneMsg{err: err, task: task}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 8
		if w > 0 {
			m.title.Width = w
			m.patient.Width = w
			m.expertise.Width = w
			m.desc.SetWidth(w)
		}
		return m, nil

	case resolveMsg:
		if m.search.Apply(resolve.Result[domain.PatientOption](msg)) {
			if m.selection >= len(m.search.Options) {
				m.selection = 0
			}
		}
		return m, m.awaitResolver()

	case submitDoneMsg:
		m.submitting = false
		if m.closed.Load() {
			return m, tea.Quit
		}
		if msg.err == nil {
			*m.task = msg.task
			m.status = statusSuccess
			m.statusMsg = "Task updated successfully!"
			m.updated = true
			return m, tea.Quit
		}
		// Field errors render inline under their fields, never as a
		// status line.
		if errors.Is(msg.err, form.ErrValidation) {
			m.status = statusNone
			m.statusMsg = ""
			return m, nil
		}
		m.status = statusFailure
		m.statusMsg = fmt.Sprintf("Error updating task: %v", msg.err)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.closed.Store(true)
		return m, tea.Quit

	case "tab", "shift+tab":
		if m.submitting {
			return m, nil
		}
		m.blurFocused()
		if msg.String() == "tab" {
			m.focused = (m.focused + 1) % fieldCount
		} else {
			m.focused = (m.focused + fieldCount - 1) % fieldCount
		}
		m.syncFocus()
		return m, nil

	case "up", "down":
		if m.focused == fieldPatient && len(m.search.Options) > 0 {
			if msg.String() == "down" {
				m.selection = (m.selection + 1) % len(m.search.Options)
			} else {
				m.selection = (m.selection + len(m.search.Options) - 1) % len(m.search.Options)
			}
			return m, nil
		}

	case "enter":
		if m.submitting {
			return m, nil
		}
		switch m.focused {
		case fieldPatient:
			if m.selection < len(m.search.Options) {
				opt := m.search.Options[m.selection]
				token := strconv.FormatInt(opt.ID, 10)
				m.patient.SetValue(token)
				m.patient.CursorEnd()
				m.draft.SetField(form.FieldPatient, token)
				m.draft.Blur(form.FieldPatient)
			}
			return m, nil
		case fieldSubmit:
			m.submitting = true
			m.status = statusPending
			m.statusMsg = "Updating task..."
			return m, m.submitCmd()
		}

	case " ":
		if m.focused == fieldComplete {
			m.draft.SetComplete(!m.draft.Complete())
			return m, nil
		}
	}

	if m.submitting {
		return m, nil
	}
	return m, m.updateFocusedInput(msg)
}

func (m *Model) updateFocusedInput(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focused {
	case fieldTitle:
		m.title, cmd = m.title.Update(msg)
		m.draft.SetField(form.FieldTitle, m.title.Value())
	case fieldPatient:
		before := m.patient.Value()
		m.patient, cmd = m.patient.Update(msg)
		after := m.patient.Value()
		m.draft.SetField(form.FieldPatient, after)
		if after != before {
			m.selection = 0
			m.search.Search(m.ctx, after)
		}
	case fieldExpertise:
		m.expertise, cmd = m.expertise.Update(msg)
		m.draft.SetField(form.FieldExpertise, m.expertise.Value())
	case fieldDescription:
		m.desc, cmd = m.desc.Update(msg)
		m.draft.SetField(form.FieldDescription, m.desc.Value())
	}
	return cmd
}

// blurFocused runs the leaving field's validation, mirroring on-blur rules.
func (m *Model) blurFocused() {
	switch m.focused {
	case fieldTitle:
		m.draft.Blur(form.FieldTitle)
	case fieldPatient:
		m.draft.Blur(form.FieldPatient)
	case fieldExpertise:
		m.draft.Blur(form.FieldExpertise)
	case fieldDescription:
		m.draft.Blur(form.FieldDescription)
	}
}

func (m *Model) syncFocus() {
	m.title.Blur()
	m.patient.Blur()
	m.expertise.Blur()
	m.desc.Blur()
	switch m.focused {
	case fieldTitle:
		m.title.Focus()
	case fieldPatient:
		m.patient.Focus()
	case fieldExpertise:
		m.expertise.Focus()
	case fieldDescription:
		m.desc.Focus()
	}
}

func (m *Model) View() string {
	var b strings.Builder
	s := m.styles

	b.WriteString(s.Title.Render(fmt.Sprintf("Edit task #%d", m.task.ID)))
	b.WriteString("\n\n")

	b.WriteString(s.Label.Render("Task Title *"))
	b.WriteString("\n" + m.title.View() + "\n")
	m.renderError(&b, form.FieldTitle)

	b.WriteString(s.Label.Render("Patient *"))
	b.WriteString("\n" + m.patient.View() + "\n")
	m.renderError(&b, form.FieldPatient)
	m.renderOptions(&b)

	b.WriteString(s.Label.Render("Expertise"))
	b.WriteString("\n" + m.expertise.View() + "\n")
	m.renderError(&b, form.FieldExpertise)

	b.WriteString(s.Label.Render("Description"))
	b.WriteString("\n" + m.desc.View() + "\n\n")

	check := "[ ]"
	if m.draft.Complete() {
		check = "[x]"
	}
	completeLabel := fmt.Sprintf("%s Complete", check)
	if m.focused == fieldComplete {
		completeLabel = s.ButtonOn.Render(completeLabel)
	}
	b.WriteString(completeLabel + "\n\n")

	button := s.Button.Render("Update Task")
	if m.focused == fieldSubmit {
		button = s.ButtonOn.Render("Update Task")
	}
	b.WriteString(button + "\n")

	switch m.status {
	case statusPending:
		b.WriteString("\n" + s.Pending.Render(m.statusMsg) + "\n")
	case statusSuccess:
		b.WriteString("\n" + s.Success.Render(m.statusMsg) + "\n")
	case statusFailure:
		b.WriteString("\n" + s.Failure.Render(m.statusMsg) + "\n")
	}

	b.WriteString("\n" + s.Help.Render("tab: next field • enter: select/submit • space: toggle • esc: cancel") + "\n")
	return b.String()
}

func (m *Model) renderError(b *strings.Builder, field form.Field) {
	if err := m.draft.FieldError(field); err != nil {
		b.WriteString(m.styles.Error.Render(err.Error()) + "\n")
	}
	b.WriteString("\n")
}

func (m *Model) renderOptions(b *strings.Builder) {
	s := m.styles
	if m.focused != fieldPatient {
		return
	}
	if m.search.Loading() {
		b.WriteString(s.Help.Render("  searching…") + "\n")
	}
	switch {
	case m.search.Err != nil:
		b.WriteString(s.Error.Render("  search failed, try again") + "\n")
	case len(m.search.Options) == 0 && !m.search.Loading():
		b.WriteString(s.Help.Render("  no matches") + "\n")
	default:
		for i, opt := range m.search.Options {
			line := fmt.Sprintf("%s (#%d)", opt.Label, opt.ID)
			if i == m.selection {
				b.WriteString(s.Selected.Render("> "+line) + "\n")
			} else {
				b.WriteString(s.Option.Render(line) + "\n")
			}
		}
	}
	b.WriteString("\n")
}

// Run opens the edit modal and blocks until the session ends. It reports
// whether the record was updated.
func Run(ctx context.Context, opts Options) (bool, error) {
	m := New(ctx, opts)
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return false, err
	}
	if fm, ok := final.(*Model); ok {
		return fm.Updated(), nil
	}
	return m.Updated(), nil
}

func firstN(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
