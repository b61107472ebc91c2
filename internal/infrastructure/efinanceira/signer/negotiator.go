package signer

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

// NegotiationState es un estado de la negociación de algoritmo.
type NegotiationState int

const (
	StateTrySHA256 NegotiationState = iota
	StateTrySHA1
	StateSigned
	StateFailed
)

func (s NegotiationState) String() string {
	switch s {
	case StateTrySHA256:
		return "TrySHA256"
	case StateTrySHA1:
		return "TrySHA1"
	case StateSigned:
		return "Signed"
	case StateFailed:
		return "Failed"
	}
	return fmt.Sprintf("NegotiationState(%d)", int(s))
}

// SignFunc ejecuta un intento de firma con el par indicado.
type SignFunc func(pair efinanceira.AlgorithmPair) error

// Negotiation es el resultado: estados recorridos, par usado y error final.
type Negotiation struct {
	Path []NegotiationState
	Pair efinanceira.AlgorithmPair
	Err  error
}

// Final devuelve el estado terminal alcanzado.
func (n Negotiation) Final() NegotiationState {
	if len(n.Path) == 0 {
		return StateTrySHA256
	}
	return n.Path[len(n.Path)-1]
}

// Negotiator decide el par de algoritmos. Empieza en RSA-SHA256 y pasa a RSA-SHA1 solo si el
// error es ErrSHA256Unavailable; cualquier otro error termina en Failed sin reintento.
type Negotiator struct {
	log zerolog.Logger
}

func NewNegotiator(log zerolog.Logger) *Negotiator {
	return &Negotiator{log: log}
}

// Negotiate recorre la máquina de estados hasta Signed o Failed.
func (n *Negotiator) Negotiate(sign SignFunc) (Negotiation, error) {
	var (
		res       Negotiation
		errSHA256 error
		failure   error
	)
	state := StateTrySHA256
	for {
		res.Path = append(res.Path, state)
		switch state {
		case StateTrySHA256:
			err := sign(efinanceira.PairSHA256)
			switch {
			case err == nil:
				res.Pair = efinanceira.PairSHA256
				state = StateSigned
			case errors.Is(err, efinanceira.ErrSHA256Unavailable):
				errSHA256 = err
				n.log.Warn().Err(err).Msg("RSA-SHA256 no disponible; se intenta RSA-SHA1")
				state = StateTrySHA1
			default:
				failure = err
				state = StateFailed
			}

		case StateTrySHA1:
			err := sign(efinanceira.PairSHA1)
			if err == nil {
				res.Pair = efinanceira.PairSHA1
				state = StateSigned
				continue
			}
			failure = fmt.Errorf("efin: firma fallida con RSA-SHA256 y RSA-SHA1: %w", errors.Join(errSHA256, err))
			state = StateFailed

		case StateSigned:
			return res, nil

		case StateFailed:
			n.log.Error().Err(failure).Msg("negociación de algoritmo fallida")
			res.Err = failure
			return res, failure
		}
	}
}
