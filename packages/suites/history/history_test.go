package history

import (
	"context"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/browser/fakebrowser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
	"github.com/abdul-hamid-achik/pagespec/packages/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	trigger  = `.card >> div.select__trigger:has-text("Vali")`
	menu     = `.card >> .select__menu`
	option   = `li.select__option:has-text("Algusaeg") input[type="checkbox"]`
	search   = `input[placeholder="Otsi üle vestluste..."]`
	rows     = `table.data-table tbody tr`
	headers  = `table.data-table th`
	dateBox  = `.card__body input`
	errorBox = `.validation-error-message`
)

// console builds a fake history screen that behaves like the mock console.
type console struct {
	chats         int
	brokenDates   bool // validation never shows
	ignoreColumns bool // checking a column leaves the table unchanged
}

func (c console) setup(p *fakebrowser.Page) {
	chats := mock.GenerateChats(c.chats)

	p.Add(".data-table__scrollWrapper", &fakebrowser.Element{
		Visible: true,
		Styles:  map[string]string{"overflow-x": "auto"},
	})

	message := &fakebrowser.Element{}
	p.Add(errorBox, message)

	validate := func(p *fakebrowser.Page, el *fakebrowser.Element) {
		if c.brokenDates {
			return
		}
		p.Update(func() {
			if el.Value == "" {
				return
			}
			if _, err := mock.ParseDate(el.Value); err != nil {
				el.Value = ""
				message.Visible = true
				message.Text = "Invalid date format, expected DD.MM.YYYY"
			}
		})
	}
	p.Add(dateBox,
		&fakebrowser.Element{Visible: true, OnBlur: validate},
		&fakebrowser.Element{Visible: true, OnBlur: validate},
	)

	setHeaders := func(labels ...string) {
		p.Remove(headers)
		for _, l := range labels {
			p.Add(headers, &fakebrowser.Element{Visible: true, Text: l})
		}
		p.Add(headers, &fakebrowser.Element{Visible: true})
	}
	var all []string
	for _, col := range mock.Columns {
		all = append(all, col.Label)
	}
	setHeaders(all...)

	checkbox := &fakebrowser.Element{
		OnCheck: func(p *fakebrowser.Page, el *fakebrowser.Element) {
			if !c.ignoreColumns {
				setHeaders("Algusaeg")
			}
		},
	}
	p.Add(option, checkbox)

	dropdown := &fakebrowser.Element{}
	p.Add(menu, dropdown)
	p.Add(trigger, &fakebrowser.Element{
		Visible: true,
		Text:    "Vali",
		OnClick: func(p *fakebrowser.Page, _ *fakebrowser.Element) {
			p.Update(func() {
				dropdown.Visible = !dropdown.Visible
				checkbox.Visible = dropdown.Visible
			})
		},
	})

	setRows := func(n int) {
		p.Remove(rows)
		for i := 0; i < n; i++ {
			p.Add(rows, &fakebrowser.Element{Visible: true})
		}
	}
	setRows(len(chats))

	p.Add(search, &fakebrowser.Element{
		Visible: true,
		OnFill: func(p *fakebrowser.Page, el *fakebrowser.Element) {
			var q string
			p.Update(func() { q = el.Value })
			setRows(len(mock.Filter{Search: q}.Apply(chats)))
		},
	})
}

func runHistory(t *testing.T, c console) *runner.RunResult {
	t.Helper()
	suite, err := Suite()
	require.NoError(t, err)

	b := fakebrowser.New(c.setup)
	r := runner.NewRunner(&runner.Config{
		BaseURL:       "https://admin.example.test",
		Workers:       4,
		ActionTimeout: time.Second,
		ExpectTimeout: 200 * time.Millisecond,
		Timeout:       10 * time.Second,
	}, b, runner.WithWarnFunc(func(string, ...any) {}))

	result, err := r.RunSuite(context.Background(), suite)
	require.NoError(t, err)
	return result
}

func TestSuite_Parses(t *testing.T) {
	suite, err := Suite()
	require.NoError(t, err)

	assert.Equal(t, "Conversation history", suite.Name)
	assert.Equal(t, FileName, suite.Path)
	require.Len(t, suite.BeforeEach, 1)
	assert.Equal(t, "/chat/history", suite.BeforeEach[0].Value)

	var names []string
	for _, sc := range suite.Scenarios {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{
		"table scrolls horizontally",
		"date inputs accept new values",
		"invalid start date shows a validation message",
		"invalid end date shows a validation message",
		"valid date formats are accepted",
		"column dropdown opens and checks an option",
		"selected column is the only data column",
		"search without matches empties the table",
	}, names)
	assert.False(t, suite.HasOnly())
	assert.Contains(t, Source(), "abcdefgh12345jklmnop678999001122ghdsa")
}

func TestSuite_PassesAgainstWorkingConsole(t *testing.T) {
	result := runHistory(t, console{chats: 5})

	for _, sr := range result.Results {
		assert.Equal(t, runner.StatusPassed, sr.Status, "%s: %v", sr.Name, sr.Error)
	}
	assert.Equal(t, 8, result.Passed)
	assert.True(t, result.Success())
}

func TestSuite_Idempotent(t *testing.T) {
	first := runHistory(t, console{chats: 5})
	second := runHistory(t, console{chats: 5})

	require.Len(t, second.Results, len(first.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Status, second.Results[i].Status, first.Results[i].Name)
	}
}

func TestSuite_SearchSkipsWithoutRows(t *testing.T) {
	result := runHistory(t, console{chats: 0})

	var search *runner.ScenarioResult
	for _, sr := range result.Results {
		if sr.Name == "search without matches empties the table" {
			search = sr
		}
	}
	require.NotNil(t, search)
	assert.Equal(t, runner.StatusSkipped, search.Status)
	assert.Contains(t, search.SkipReason, "condition not met")
	assert.Equal(t, 7, result.Passed)
	assert.Equal(t, 1, result.Skipped)
}

func TestSuite_DetectsRegressions(t *testing.T) {
	t.Run("date validation missing", func(t *testing.T) {
		result := runHistory(t, console{chats: 5, brokenDates: true})
		failed := failures(result)
		assert.Equal(t, runner.FailureTimeout, failed["invalid start date shows a validation message"])
		assert.Equal(t, runner.FailureTimeout, failed["invalid end date shows a validation message"])
		assert.Len(t, failed, 2)
	})

	t.Run("column selection ignored", func(t *testing.T) {
		result := runHistory(t, console{chats: 5, ignoreColumns: true})
		failed := failures(result)
		assert.Equal(t, runner.FailureAssertion, failed["selected column is the only data column"])
		assert.Len(t, failed, 1)
	})
}

func failures(result *runner.RunResult) map[string]runner.FailureKind {
	out := make(map[string]runner.FailureKind)
	for _, sr := range result.Results {
		if sr.Status == runner.StatusFailed {
			out[sr.Name] = sr.Failure
		}
	}
	return out
}
