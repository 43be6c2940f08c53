package apperr

import (
	"errors"
	"fmt"
)

// Error é um erro de negócio: carrega o código de resposta próprio para que
// falhas de validação não caiam no tratamento genérico de 500.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is permite errors.Is contra os erros-sentinela abaixo.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Message == t.Message
}

func New(message string, code int) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap anexa contexto mantendo o erro de negócio detectável por errors.Is.
func Wrap(err error, context string) error {
	return fmt.Errorf("%s: %w", context, err)
}

// Taxonomia de erros do núcleo.
var (
	ErrInvalidAppID        = New("invalid_appid", 400)
	ErrInvalidSignature    = New("invalid_signature", 400)
	ErrOddInactive         = New("odd_invalid", 400)
	ErrMatchStarted        = New("match_started", 400)
	ErrInvalidAction       = New("invalid_action", 400)
	ErrInsufficientBalance = New("insufficient_balance", 400)
	ErrStakeOutOfBounds    = New("stake_out_of_bounds", 400)
	ErrMaxStakePerMatch    = New("max_stake_per_match_exceeded", 400)
	ErrOrderNotFound       = New("order_not_found", 404)
	ErrGatewayCallFailed   = New("gateway_call_failed", 502)
	ErrAlreadySettled      = New("already_settled", 200) // benigno: tratado como sucesso
)
