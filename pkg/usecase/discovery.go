package usecase

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/m-mizutani/hookrun/pkg/domain"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
	"github.com/m-mizutani/hookrun/pkg/taglog"
)

// Script implementations for hook H are files named `H-*` or `H_NN_*`
// (NN = two-digit order hint). Both forms sort together by filename, which
// doubles as the sort key. A `.source` filename suffix forces source mode;
// everything else runs in the configured default mode.
const sourceSuffix = ".source"

var orderHintPattern = regexp.MustCompile(`^\d{2}_`)

// discoverScripts lists the script implementations for one hook in the
// hooks directory. A missing or empty directory yields no implementations.
// Non-executable matches are skipped with a diagnostic, not an error.
func discoverScripts(dir, hook string, defaultMode model.Mode, log *taglog.Registry) ([]model.Implementation, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.ErrConfiguration.Wrap(err)
	}

	ch := log.Channel("discovery")
	var impls []model.Implementation
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !matchesHook(name, hook) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode()&0111 == 0 {
			ch.Linef("skipping non-executable script %s", name)
			continue
		}

		mode := defaultMode
		if strings.HasSuffix(name, sourceSuffix) {
			mode = model.ModeSource
		}

		impls = append(impls, model.Implementation{
			Kind:    model.KindScript,
			SortKey: name,
			Path:    filepath.Join(dir, name),
			Mode:    mode,
		})
	}
	return impls, nil
}

func matchesHook(filename, hook string) bool {
	if rest, ok := strings.CutPrefix(filename, hook+"-"); ok {
		return rest != ""
	}
	if rest, ok := strings.CutPrefix(filename, hook+"_"); ok {
		return orderHintPattern.MatchString(rest)
	}
	return false
}
