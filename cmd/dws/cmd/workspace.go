package cmd

import (
	"context"

	"github.com/kisdma/data-workspaces-core/pkg/engine"
	"github.com/kisdma/data-workspaces-core/pkg/workspace"
)

func workspaceDir() string {
	if dwsFlags.root.workspace != "" {
		return dwsFlags.root.workspace
	}
	return "."
}

// openWorkspace finds the workspace the command operates on
func openWorkspace(ctx context.Context) (*workspace.Workspace, error) {
	return workspace.Find(ctx, workspaceDir(), workspace.Logger(logger))
}

func openEngine(ctx context.Context) (*engine.Engine, error) {
	ws, err := openWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	return engine.New(ws, engine.Logger(logger)), nil
}
