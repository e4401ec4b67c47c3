package process

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize matches the largest single stream-json line we expect
const maxLineSize = 1024 * 1024

// TerminateOn relays the child's stdout line by line and kills the process
// group as soon as a line contains marker. Once that happens Wait reports a
// clean exit. The relayed stream replaces c.Stdout, so callers must keep
// reading it for the relay to make progress.
//
// TerminateOn must be called before anything reads from Stdout.
func (c *Child) TerminateOn(marker string) {
	src := c.Stdout
	pr, pw := io.Pipe()
	c.Stdout = pr
	c.relayDone = make(chan struct{})

	go func() {
		defer close(c.relayDone)
		defer func() { _ = pw.Close() }()

		scanner := bufio.NewScanner(src)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := scanner.Text()
			if _, err := io.WriteString(pw, line+"\n"); err != nil {
				return
			}
			if strings.Contains(line, marker) {
				c.matched.Store(true)
				_ = c.Kill()
				return
			}
		}
		if scanner.Err() != nil {
			// Oversized line: stop matching but keep the child unblocked.
			_, _ = io.Copy(pw, src)
		}
	}()
}
