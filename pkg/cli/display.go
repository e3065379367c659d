package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
)

// RenderHookList prints declared hooks and their implementations.
func RenderHookList(infos []model.HookInfo) {
	if len(infos) == 0 {
		fmt.Println("no hooks declared")
		return
	}

	nameColor := color.New(color.FgCyan, color.Bold)
	kindColor := color.New(color.FgYellow)
	dimColor := color.New(color.FgWhite)

	for _, info := range infos {
		nameColor.Printf("%s", info.Name)
		dimColor.Printf("  (declared by %s)\n", strings.Join(info.Contexts, ", "))

		if info.HasInline {
			kindColor.Print("  inline")
			fmt.Printf("  mode=%s\n", resolveMode(info.InlineMode))
		}
		for _, key := range info.Registered {
			kindColor.Print("  registered")
			fmt.Printf("  %s\n", key)
		}
		for _, script := range info.Scripts {
			kindColor.Print("  script")
			fmt.Printf("  %s\n", script)
		}
		if !info.HasInline && len(info.Registered) == 0 && len(info.Scripts) == 0 {
			dimColor.Println("  (no implementations)")
		}
	}
}

func resolveMode(mode model.Mode) model.Mode {
	if mode == "" {
		return model.ModeExec
	}
	return mode
}
