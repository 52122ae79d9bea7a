package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"excalidash/client"
	"excalidash/core"
	"excalidash/dashboard"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

// promptConfirmer asks on the command's terminal before permanent deletes.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
	yes bool
}

func (p *promptConfirmer) Confirm(prompt string, count int) bool {
	if p.yes {
		return true
	}
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

type sessionOptions struct {
	scope core.Scope
	sort  dashboard.SortConfig
	yes   bool
}

// openDashboard connects to the server and loads the requested scope.
func openDashboard(cmd *cobra.Command, app *App, opts sessionOptions) (*dashboard.Dashboard, error) {
	tag, err := language.Parse(app.Locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", app.Locale, err)
	}
	opts.sort.Locale = tag

	d := dashboard.New(cmd.Context(), dashboard.Options{
		Remote:         client.New(app.ServerURL, app.Token),
		Confirmer:      &promptConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout(), yes: opts.yes},
		Sort:           opts.sort,
		Scope:          opts.scope,
		SearchDebounce: app.Debounce,
	})
	if err := d.Refresh(cmd.Context()); err != nil {
		return nil, err
	}
	return d, nil
}

// finish waits for op and every follow-up refresh.
func finish(d *dashboard.Dashboard, op *dashboard.Op) error {
	err := op.Wait()
	d.Wait()
	return err
}

// run issues one dashboard command and waits for it to settle.
func run(cmd *cobra.Command, app *App, opts sessionOptions, action func(context.Context, *dashboard.Dashboard) (*dashboard.Op, error)) error {
	d, err := openDashboard(cmd, app, opts)
	if err != nil {
		return err
	}
	op, err := action(cmd.Context(), d)
	if errors.Is(err, dashboard.ErrNotConfirmed) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}
	if err != nil {
		return err
	}
	return finish(d, op)
}

// parseTarget reads a collection reference: "" and "null" are unorganized.
func parseTarget(s string) *string {
	if s == "null" {
		return nil
	}
	return core.CollectionRef(s)
}
