package dispatch

import (
	"strconv"
	"strings"

	"github.com/ehrlich-b/go-kvstore/internal/kverrors"
	"github.com/ehrlich-b/go-kvstore/internal/resp"
)

func (d *Dispatcher) handlePing(args [][]byte) Result {
	return Result{Reply: resp.RespPong}
}

func (d *Dispatcher) handleEcho(args [][]byte) Result {
	return Result{Reply: resp.EncodeSimpleString(string(args[1]))}
}

// handleSet implements SET key value [PX ms]. Any other trailing option is
// rejected as a protocol-level argument error rather than silently ignored.
func (d *Dispatcher) handleSet(args [][]byte) Result {
	key, value := args[1], args[2]
	var expiryMs int64
	if len(args) > 3 {
		if len(args) != 5 || !strings.EqualFold(string(args[3]), "PX") {
			return errorResult(kverrors.ErrCodeWrongArity, "wrong number of arguments")
		}
		ms, err := strconv.ParseInt(string(args[4]), 10, 64)
		if err != nil || ms < 0 {
			return errorResult(kverrors.ErrCodeWrongArity, "PX value is not an integer")
		}
		expiryMs = ms
	}
	if err := d.Keyspace.Set(key, value, expiryMs); err != nil {
		return errorResult(kverrors.ErrCodeCapacityExceeded, "failed to set key")
	}
	return Result{Reply: resp.RespOK}
}

func (d *Dispatcher) handleGet(args [][]byte) Result {
	value, ok := d.Keyspace.Get(args[1])
	d.Observer.ObserveKeyspaceLookup(ok)
	if !ok {
		return Result{Reply: resp.EncodeNullBulk()}
	}
	return Result{Reply: resp.EncodeBulkString(value)}
}

// handleDel always replies :1 regardless of whether the key existed,
// matching the fixed reply the command table specifies.
func (d *Dispatcher) handleDel(args [][]byte) Result {
	d.Keyspace.Del(args[1])
	return Result{Reply: resp.EncodeInteger(1)}
}

// handleKeys ignores its pattern argument and returns every live key.
func (d *Dispatcher) handleKeys(args [][]byte) Result {
	keys := d.Keyspace.Keys()
	return Result{Reply: resp.EncodeArray(keys...)}
}

// handleConfig implements CONFIG GET dir / CONFIG GET dbfilename. Any other
// parameter is a bad-config-parameter error.
func (d *Dispatcher) handleConfig(args [][]byte) Result {
	if !strings.EqualFold(string(args[1]), "GET") {
		return errorResult(kverrors.ErrCodeBadConfig, "Unknown CONFIG parameter")
	}
	var value string
	switch strings.ToLower(string(args[2])) {
	case "dir":
		value = d.Config.Dir
	case "dbfilename":
		value = d.Config.DBFilename
	default:
		return errorResult(kverrors.ErrCodeBadConfig, "Unknown CONFIG parameter")
	}
	return Result{Reply: resp.EncodeArray(args[2], []byte(value))}
}
