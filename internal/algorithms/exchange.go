package algorithms

import (
	"sensor-window-service/internal/models"
)

// Exchange payload arities. A four-value exchange is the bare round trip;
// a six-value exchange appends a machine-clock pair from the device.
const (
	ExchangeArityQuad = 4
	ExchangeAritySext = 6
)

// DetectExchangeArity guesses the per-exchange arity from the payload
// length. Lengths divisible by six are treated as six-value exchanges;
// otherwise four. A remainder is left to ExtractExchanges to drop.
func DetectExchangeArity(payloadLen int) int {
	if payloadLen > 0 && payloadLen%ExchangeAritySext == 0 {
		return ExchangeAritySext
	}
	return ExchangeArityQuad
}

// ExtractExchanges groups a packet's flat time-sync payload into exchange
// tuples. Exchanges whose timestamps are not non-decreasing, or that repeat
// a prior exchange in the same packet, are dropped. An absent or empty
// payload yields an empty sequence; none of this is an error. The transform
// is pure: the payload is never modified.
func ExtractExchanges(payload []float64, arity int) []models.Exchange {
	if arity != ExchangeArityQuad && arity != ExchangeAritySext {
		arity = ExchangeArityQuad
	}
	if len(payload) < arity {
		return nil
	}

	exchanges := make([]models.Exchange, 0, len(payload)/arity)
	// A trailing partial group is discarded.
	for i := 0; i+arity <= len(payload); i += arity {
		e := models.Exchange{
			DeviceSend: payload[i],
			ServerRecv: payload[i+1],
			ServerSend: payload[i+2],
			DeviceRecv: payload[i+3],
		}
		if arity == ExchangeAritySext {
			e.MachineSend = payload[i+4]
			e.MachineRecv = payload[i+5]
			e.HasMachine = true
		}

		if !e.Monotonic() {
			continue
		}
		if duplicatesPrior(exchanges, &e) {
			continue
		}
		exchanges = append(exchanges, e)
	}
	return exchanges
}

// duplicatesPrior reports whether e repeats the round-trip timestamps of
// any exchange already accepted from the same packet.
func duplicatesPrior(accepted []models.Exchange, e *models.Exchange) bool {
	for i := range accepted {
		if accepted[i].SameCore(e) {
			return true
		}
	}
	return false
}
