package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/meilan-group/mallops-cli/internal/assistant"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant one question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ask"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		a, err := newAssistant(st)
		if err != nil {
			return err
		}

		sessionID := askSessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		resp, err := a.Handle(ctx, assistant.Request{SessionID: sessionID, Message: args[0]})
		if err != nil {
			return eris.Wrap(err, "ask")
		}

		fmt.Println(resp.Text)
		if resp.NeedsClarification {
			fmt.Printf("\n(继续对话请带上会话参数：--session %s)\n", sessionID)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "session id for multi-turn context")
	rootCmd.AddCommand(askCmd)
}
