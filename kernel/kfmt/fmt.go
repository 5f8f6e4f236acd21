// Package kfmt implements the kernel's logging primitives: a Printf that can
// run without the Go allocator, an early-output ring buffer and the panic
// path used by every fatal condition.
package kfmt

import (
	"io"
	"unicode/utf8"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numFmtBuf = []byte("012345678901234567890123456789012")

	// runeBuf holds the UTF-8 encoding of a %c argument.
	runeBuf = []byte{0, 0, 0, 0}

	// singleByte is used as a shared buffer for passing single characters
	// to doWrite.
	singleByte = []byte(" ")

	// earlyPrintBuffer is a ring buffer that stores Printf output before
	// any output sink is attached.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the default target for calls to Printf.
func GetOutputSink() io.Writer {
	return outputSink
}

// sinkForwarder is an io.Writer that forwards writes to the output sink that
// is active at the time of the write.
type sinkForwarder struct{}

func (sinkForwarder) Write(p []byte) (int, error) {
	doWrite(outputSink, p)
	return len(p), nil
}

// Output returns an io.Writer that sends its output wherever Printf would:
// to the active output sink or, if none is attached yet, to the early output
// buffer.
func Output() io.Writer {
	return sinkForwarder{}
}

// Printf provides a minimal Printf implementation that can be safely used
// from interrupt context and before the Go allocator is available. This
// implementation does not allocate any memory.
//
// Similar to fmt.Printf, this version of printf supports the following subset
// of formatting verbs:
//
// Strings:
//
//	%s the uninterpreted bytes of the string or byte slice
//	%c the character represented by a rune or byte
//
// Integers:
//
//	%o base 8
//	%d base 10
//	%x base 16, with lower-case letters for a-f
//
// Booleans:
//
//	%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. Strings and base-10 integers are left-padded with spaces; base-8 and
// base-16 integers are left-padded with zeroes.
//
// Printf does not consult io.Stringer or support %p as both would require
// reflection which makes the compiler emit allocating conversions for the
// argument slice.
//
// The output of Printf is written to the active output sink. If no sink is
// attached, the output is buffered into a ring-buffer that is flushed when a
// sink is attached via SetOutputSink.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		ch      byte
		argIdx  int
		padLen  int
		fmtLen  = len(format)
		literal = 0
	)

	for i := 0; i < fmtLen; i++ {
		if format[i] != '%' {
			continue
		}

		writeLiteral(w, format, literal, i)

		// Parse optional width followed by the verb
		padLen = 0
		for i++; i < fmtLen; i++ {
			ch = format[i]
			if ch < '0' || ch > '9' {
				break
			}
			padLen = (padLen * 10) + int(ch-'0')
		}

		literal = i + 1
		if i >= fmtLen {
			doWrite(w, errNoVerb)
			break
		}

		switch ch {
		case '%':
			singleByte[0] = '%'
			doWrite(w, singleByte)
			continue
		case 'd', 'x', 'o', 's', 't', 'c':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if argIdx >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch ch {
		case 'o':
			fmtInt(w, args[argIdx], 8, padLen)
		case 'd':
			fmtInt(w, args[argIdx], 10, padLen)
		case 'x':
			fmtInt(w, args[argIdx], 16, padLen)
		case 's':
			fmtString(w, args[argIdx], padLen)
		case 't':
			fmtBool(w, args[argIdx])
		case 'c':
			fmtRune(w, args[argIdx])
		}
		argIdx++
	}

	writeLiteral(w, format, literal, fmtLen)

	for ; argIdx < len(args); argIdx++ {
		doWrite(w, errExtraArg)
	}
}

// writeLiteral writes format[from:to]. Slicing the string into a []byte
// triggers a memory allocation so the bytes are written one at a time.
func writeLiteral(w io.Writer, format string, from, to int) {
	for i := from; i < to; i++ {
		singleByte[0] = format[i]
		doWrite(w, singleByte)
	}
}

// fmtBool prints a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtRune prints the UTF-8 encoding of a rune or byte value v.
func fmtRune(w io.Writer, v interface{}) {
	var r rune
	switch castedVal := v.(type) {
	case rune:
		r = castedVal
	case byte:
		r = rune(castedVal)
	default:
		doWrite(w, errWrongArgType)
		return
	}

	n := utf8.EncodeRune(runeBuf, r)
	doWrite(w, runeBuf[:n])
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		writeLiteral(w, castedVal, 0, len(castedVal))
	case []byte:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	singleByte[0] = ch
	for i := 0; i < count; i++ {
		doWrite(w, singleByte)
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen. This function supports all built-in signed
// and unsigned integer types and base 8, 10 and 16 output.
func fmtInt(w io.Writer, v interface{}, base, padLen int) {
	var (
		uval     uint64
		negative bool
		padCh    = byte('0')
		end      int
	)

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	if base == 10 {
		padCh = ' '
	}

	switch castedVal := v.(type) {
	case uint8:
		uval = uint64(castedVal)
	case uint16:
		uval = uint64(castedVal)
	case uint32:
		uval = uint64(castedVal)
	case uint64:
		uval = castedVal
	case uint:
		uval = uint64(castedVal)
	case uintptr:
		uval = uint64(castedVal)
	case int8:
		uval, negative = absInt(int64(castedVal))
	case int16:
		uval, negative = absInt(int64(castedVal))
	case int32:
		uval, negative = absInt(int64(castedVal))
	case int64:
		uval, negative = absInt(castedVal)
	case int:
		uval, negative = absInt(int64(castedVal))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	// Digits are emitted in reverse order and flipped at the end.
	for {
		digit := uval % uint64(base)
		if digit < 10 {
			numFmtBuf[end] = byte(digit) + '0'
		} else {
			numFmtBuf[end] = byte(digit-10) + 'a'
		}
		end++

		uval /= uint64(base)
		if uval == 0 || end == maxBufSize {
			break
		}
	}

	// Space padding goes before the sign; zero padding goes after it.
	if negative && padCh == '0' {
		for ; end < padLen-1; end++ {
			numFmtBuf[end] = padCh
		}
	}

	if negative {
		numFmtBuf[end] = '-'
		end++
	}

	for ; end < padLen; end++ {
		numFmtBuf[end] = padCh
	}

	for left, right := 0, end-1; left < right; left, right = left+1, right-1 {
		numFmtBuf[left], numFmtBuf[right] = numFmtBuf[right], numFmtBuf[left]
	}

	doWrite(w, numFmtBuf[:end])
}

func absInt(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without this hack, the compiler cannot properly
// detect that p does not escape (due to the call to the yet unknown outputSink
// io.Writer) and plays it safe by flagging it as escaping.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
