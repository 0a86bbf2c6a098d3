package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/troubleshoot/pkg/client"
)

const chatLongDesc string = `Chat with a running troubleshoot server from the terminal.

On an interactive terminal a full-screen chat opens; replies are rendered
as markdown. When input is piped, each non-empty line is sent as one user
turn and the reply is printed on stdout. The conversation is kept for the
whole session and sent in full with every turn.

Examples:
  troubleshoot chat
  troubleshoot chat --server http://192.168.1.42:5000
  echo "Engine cranks but will not start" | troubleshoot chat`

const chatShortDesc string = "Chat with a troubleshoot server"

const defaultServer = "http://localhost:5000"

type chatCommander struct {
	serverURL string
	plain     bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.serverURL, "server", "s", defaultServer, "Base URL of the troubleshoot server")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Read turns line by line even on a terminal")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	session := client.NewSession(client.New(c.serverURL))

	in := cmd.InOrStdin()
	if !c.plain && isTerminal(in) {
		return runTUI(ctx, session, in, cmd.OutOrStdout())
	}

	return runLines(ctx, session, in, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runLines sends each non-empty input line as a user turn. A failed turn is
// reported on errOut and dropped from the conversation; reading continues.
func runLines(ctx context.Context, session *client.Session, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		reply, err := session.Send(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(errOut, "error: %v\n", err)
			continue
		}

		fmt.Fprintln(out, reply)
	}

	return scanner.Err()
}
