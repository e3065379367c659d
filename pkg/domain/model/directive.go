package model

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// DirectivePrefix marks an output line as a contract directive. The engine
// core never interprets these lines; only middleware assigns them meaning.
const DirectivePrefix = "contract:"

// DirectiveKind enumerates the structured instructions a contract line can
// encode.
type DirectiveKind int

const (
	DirectiveSetEnv DirectiveKind = iota + 1
	DirectiveAppendEnv
	DirectivePrependEnv
	DirectiveRemoveEnv
	DirectiveRoute
	DirectiveExit
)

// Directive is the typed form of one contract line. Name/Value are set for
// the env kinds, Path for Route, Code for Exit.
type Directive struct {
	Kind  DirectiveKind
	Name  string
	Value string
	Path  string
	Code  int
}

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseDirective decodes one output line. It returns (nil, false, nil) for
// ordinary lines that do not carry the contract prefix. A line that carries
// the prefix but cannot be decoded is a contract error, never silently
// replayed.
func ParseDirective(line string) (*Directive, bool, error) {
	rest, found := strings.CutPrefix(line, DirectivePrefix)
	if !found {
		return nil, false, nil
	}

	switch {
	case strings.HasPrefix(rest, "env:"):
		d, err := parseEnvDirective(strings.TrimPrefix(rest, "env:"))
		if err != nil {
			return nil, false, err
		}
		return d, true, nil

	case strings.HasPrefix(rest, "route:"):
		path := strings.TrimPrefix(rest, "route:")
		if path == "" {
			return nil, false, goerr.New("route directive requires a path", goerr.V("line", line))
		}
		return &Directive{Kind: DirectiveRoute, Path: path}, true, nil

	case strings.HasPrefix(rest, "exit:"):
		code, err := strconv.Atoi(strings.TrimPrefix(rest, "exit:"))
		if err != nil {
			return nil, false, goerr.Wrap(err, "exit directive requires an integer code", goerr.V("line", line))
		}
		return &Directive{Kind: DirectiveExit, Code: code}, true, nil

	default:
		return nil, false, goerr.New("unknown contract directive", goerr.V("line", line))
	}
}

// parseEnvDirective decodes NAME=V, NAME+=V, NAME^=V and NAME-=V.
func parseEnvDirective(expr string) (*Directive, error) {
	eq := strings.IndexByte(expr, '=')
	if eq <= 0 {
		return nil, goerr.New("env directive requires NAME=VALUE", goerr.V("expr", expr))
	}

	name, value := expr[:eq], expr[eq+1:]
	kind := DirectiveSetEnv
	if len(name) > 1 {
		switch name[len(name)-1] {
		case '+':
			kind = DirectiveAppendEnv
			name = name[:len(name)-1]
		case '^':
			kind = DirectivePrependEnv
			name = name[:len(name)-1]
		case '-':
			kind = DirectiveRemoveEnv
			name = name[:len(name)-1]
		}
	}

	if !envNamePattern.MatchString(name) {
		return nil, goerr.New("malformed env directive name", goerr.V("name", name))
	}
	return &Directive{Kind: kind, Name: name, Value: value}, nil
}

// Apply mutates env according to the directive. Route and Exit kinds are
// flow control, not environment mutations, and are rejected here.
func (d *Directive) Apply(env *Environ) error {
	switch d.Kind {
	case DirectiveSetEnv:
		env.Set(d.Name, d.Value)
	case DirectiveAppendEnv:
		env.Append(d.Name, d.Value)
	case DirectivePrependEnv:
		env.Prepend(d.Name, d.Value)
	case DirectiveRemoveEnv:
		env.Remove(d.Name, d.Value)
	default:
		return goerr.New("directive does not target the environment", goerr.V("kind", int(d.Kind)))
	}
	return nil
}
