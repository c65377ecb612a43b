package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"tlview/internal/render"
)

// Run shows the viewer until the user quits or ctx ends.
func Run(ctx context.Context, tl Controller, scene *render.Scene, opts Options) error {
	p := tea.NewProgram(New(tl, scene, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
