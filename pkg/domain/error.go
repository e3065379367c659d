package domain

import "github.com/m-mizutani/goerr/v2"

var (
	ErrDeclaration   = goerr.New("hook declaration error", goerr.ID("declaration"))
	ErrRegistration  = goerr.New("hook registration error", goerr.ID("registration"))
	ErrCapture       = goerr.New("output capture error", goerr.ID("capture"))
	ErrContract      = goerr.New("middleware contract error", goerr.ID("contract"))
	ErrConfiguration = goerr.New("configuration error", goerr.ID("configuration"))
	ErrSignal        = goerr.New("signal registry error", goerr.ID("signal"))
)
