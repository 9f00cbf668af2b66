package widget

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

// RunLines is the non-interactive widget: every input line is one turn.
// Blank lines are skipped; a failed turn is reported and the loop goes on.
func RunLines(ctx context.Context, ctrl *conversation.Controller, completer conversation.Completer, in io.Reader, out io.Writer) error {
	for _, msg := range ctrl.Transcript() {
		if _, err := fmt.Fprintln(out, PlainLine(msg)); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		text := scanner.Text()
		if conversation.ValidateInput(text) != nil {
			continue
		}

		reply, err := ctrl.Submit(ctx, text, completer)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			log.Warn().Err(err).Str("component", "widget").Msg("turn failed")
			if _, werr := fmt.Fprintf(out, "error: %v\n", err); werr != nil {
				return werr
			}
			continue
		}
		if _, err := fmt.Fprintln(out, PlainLine(reply)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
