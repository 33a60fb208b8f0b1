// Package traceparser reads the trace-file grammar into batches of
// internal/instr.Instr, one batch per trace: a bufio.Scanner-driven,
// line-numbered, options-configurable line parser.
package traceparser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-axe/axe/internal/instr"
)

// Options configures parsing behavior.
type Options struct {
	// IgnoreTimestamps drops any @begin:end suffix instead of parsing it.
	IgnoreTimestamps bool
}

// Parser reads trace files into batches of instructions, one batch per
// trace (a "check" token flushes the current batch and starts the next;
// an unflushed trailing batch at EOF is included too).
type Parser struct {
	opts Options
}

// New creates a Parser with the given options.
func New(opts Options) *Parser {
	return &Parser{opts: opts}
}

// ParseError is a trace-file syntax error, always line-referenced.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func parseErr(line int, format string, args ...any) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Parse reads r to EOF and returns one []instr.Instr per trace.
func (p *Parser) Parse(r io.Reader) ([][]instr.Instr, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var batches [][]instr.Instr
	var cur []instr.Instr
	uid := 0
	lineNo := 0

	flush := func() {
		if len(cur) > 0 {
			batches = append(batches, cur)
		}
		cur = nil
		uid = 0
	}

	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}

		if tokens[0] == "check" {
			if len(tokens) != 1 {
				return nil, parseErr(lineNo, "unexpected tokens after 'check'")
			}
			flush()
			continue
		}

		in, err := p.parseLine(tokens, uid, lineNo)
		if err != nil {
			return nil, err
		}
		cur = append(cur, in)
		uid++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	flush()
	return batches, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

// parseLine parses one non-"check" line: either `final <addr> == <val>`
// or `<tid> : <body> [@<begin>:<end>]`.
func (p *Parser) parseLine(tokens []string, uid, lineNo int) (instr.Instr, error) {
	if tokens[0] == "final" {
		if len(tokens) != 4 || tokens[2] != "==" {
			return instr.Instr{}, parseErr(lineNo, "malformed final constraint, want 'final M[addr] == val'")
		}
		addr, err := parseAddr(tokens[1], lineNo)
		if err != nil {
			return instr.Instr{}, err
		}
		val, err := parseInt(tokens[3], lineNo, "value")
		if err != nil {
			return instr.Instr{}, err
		}
		return instr.Instr{UID: uid, TID: -1, Op: instr.FINAL, Addr: addr, ReadVal: val, Line: lineNo}, nil
	}

	if len(tokens) < 3 || tokens[1] != ":" {
		return instr.Instr{}, parseErr(lineNo, "expected '<tid> : <body>'")
	}
	tid, err := parseInt(tokens[0], lineNo, "thread id")
	if err != nil {
		return instr.Instr{}, err
	}

	body := tokens[2:]
	begin, end := instr.NoTime, instr.NoTime
	if last := body[len(body)-1]; strings.HasPrefix(last, "@") {
		begin, end, err = parseTimestamp(last, lineNo)
		if err != nil {
			return instr.Instr{}, err
		}
		body = body[:len(body)-1]
		if p.opts.IgnoreTimestamps {
			begin, end = instr.NoTime, instr.NoTime
		}
	}

	in, err := p.parseBody(tid, body, lineNo)
	if err != nil {
		return instr.Instr{}, err
	}
	in.UID = uid
	in.BeginTime = begin
	in.EndTime = end
	return in, nil
}

func (p *Parser) parseBody(tid int, body []string, lineNo int) (instr.Instr, error) {
	switch {
	case len(body) == 1 && body[0] == "sync":
		return instr.Instr{TID: tid, Op: instr.SYNC, Line: lineNo}, nil

	case len(body) == 3 && body[1] == "==":
		addr, err := parseAddr(body[0], lineNo)
		if err != nil {
			return instr.Instr{}, err
		}
		val, err := parseInt(body[2], lineNo, "value")
		if err != nil {
			return instr.Instr{}, err
		}
		return instr.Instr{TID: tid, Op: instr.LD, Addr: addr, ReadVal: val, Line: lineNo}, nil

	case len(body) == 3 && body[1] == ":=":
		addr, err := parseAddr(body[0], lineNo)
		if err != nil {
			return instr.Instr{}, err
		}
		val, err := parseInt(body[2], lineNo, "value")
		if err != nil {
			return instr.Instr{}, err
		}
		return instr.Instr{TID: tid, Op: instr.ST, Addr: addr, WriteVal: val, Line: lineNo}, nil

	case len(body) == 9 && body[0] == "{" && body[2] == "==" && body[4] == ";" && body[6] == ":=" && body[8] == "}":
		raddr, err := parseAddr(body[1], lineNo)
		if err != nil {
			return instr.Instr{}, err
		}
		rval, err := parseInt(body[3], lineNo, "read value")
		if err != nil {
			return instr.Instr{}, err
		}
		waddr, err := parseAddr(body[5], lineNo)
		if err != nil {
			return instr.Instr{}, err
		}
		wval, err := parseInt(body[7], lineNo, "write value")
		if err != nil {
			return instr.Instr{}, err
		}
		if raddr != waddr {
			return instr.Instr{}, parseErr(lineNo, "RMW read and write addresses must match (M[%d] vs M[%d])", raddr, waddr)
		}
		return instr.Instr{TID: tid, Op: instr.RMW, Addr: raddr, ReadVal: rval, WriteVal: wval, Line: lineNo}, nil

	default:
		return instr.Instr{}, parseErr(lineNo, "unrecognized instruction body %q", strings.Join(body, " "))
	}
}

func parseAddr(tok string, lineNo int) (int, error) {
	switch {
	case strings.HasPrefix(tok, "M[") && strings.HasSuffix(tok, "]"):
		return parseInt(tok[2:len(tok)-1], lineNo, "address")
	case strings.HasPrefix(tok, "v"):
		return parseInt(tok[1:], lineNo, "address")
	default:
		return 0, parseErr(lineNo, "malformed address %q, want M[n] or vn", tok)
	}
}

func parseInt(tok string, lineNo int, what string) (int, error) {
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return 0, parseErr(lineNo, "malformed %s %q, want a non-negative integer", what, tok)
	}
	return n, nil
}

func parseTimestamp(tok string, lineNo int) (begin, end int, err error) {
	body := strings.TrimPrefix(tok, "@")
	parts := strings.SplitN(body, ":", 2)
	if len(parts) != 2 {
		return 0, 0, parseErr(lineNo, "malformed timestamp %q, want @begin:end", tok)
	}
	begin, end = instr.NoTime, instr.NoTime
	if parts[0] != "" {
		begin, err = parseInt(parts[0], lineNo, "begin timestamp")
		if err != nil {
			return 0, 0, err
		}
	}
	if parts[1] != "" {
		end, err = parseInt(parts[1], lineNo, "end timestamp")
		if err != nil {
			return 0, 0, err
		}
	}
	return begin, end, nil
}
