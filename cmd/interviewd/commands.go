package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// --- turn ---

var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "Advance an interview by one turn",
	Long: `Advance an interview by one turn.

Examples:
  interviewd turn --owner founder-42
  interviewd turn --owner founder-42 --answer "We sell to mid-size 3PLs"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		session, _ := cmd.Flags().GetString("session")
		answer, _ := cmd.Flags().GetString("answer")

		client, err := newAPIClient(owner)
		if err != nil {
			return err
		}

		resp, err := client.post("/v1/interview/turns", map[string]string{
			"session_id": session,
			"answer":     answer,
		})
		if err != nil {
			return err
		}

		var result struct {
			SessionID        string  `json:"session_id"`
			Mode             string  `json:"mode"`
			Question         *string `json:"question"`
			QuestionsAsked   int     `json:"questions_asked"`
			CanFinalize      bool    `json:"can_finalize"`
			ForceComplete    bool    `json:"force_complete"`
			ApproachingLimit bool    `json:"approaching_limit"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus("Session", "%s (%s)", result.SessionID, result.Mode)
		if result.ForceComplete {
			printWarning("Question budget spent — run: interviewd summary --owner %s --session %s", owner, result.SessionID)
			return nil
		}
		fmt.Printf("\n%s %s\n", colorize(colorBold, fmt.Sprintf("Q%d:", result.QuestionsAsked)), *result.Question)
		if result.ApproachingLimit {
			printWarning("Approaching the question limit")
		}
		if result.CanFinalize {
			printStatus("Hint", "enough depth to finalize with: interviewd summary")
		}
		return nil
	},
}

// --- summary ---

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Finalize an interview into a structured venture summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		session, _ := cmd.Flags().GetString("session")
		if session == "" {
			return fmt.Errorf("--session is required")
		}

		client, err := newAPIClient(owner)
		if err != nil {
			return err
		}

		resp, err := client.post("/v1/interview/"+session+"/summary", nil)
		if err != nil {
			return err
		}

		var doc any
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
		printSuccess("Summary persisted for session %s", session)
		return nil
	},
}

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show a session's transcript and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		session, _ := cmd.Flags().GetString("session")
		if session == "" {
			return fmt.Errorf("--session is required")
		}

		client, err := newAPIClient(owner)
		if err != nil {
			return err
		}

		resp, err := client.get("/v1/interview/" + session)
		if err != nil {
			return err
		}

		var view struct {
			ID         string `json:"id"`
			Mode       string `json:"mode"`
			Status     string `json:"status"`
			Transcript []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"transcript"`
			Summary json.RawMessage `json:"summary"`
		}
		if err := decodeJSON(resp, &view); err != nil {
			return err
		}

		printStatus("Session", "%s", view.ID)
		printStatus("Mode", "%s", view.Mode)
		printStatus("Status", "%s", view.Status)
		for _, turn := range view.Transcript {
			label := "A"
			if turn.Role == "interviewer" {
				label = "Q"
			}
			fmt.Printf("%s %s\n", colorize(colorCyan, label+":"), turn.Content)
		}
		if len(view.Summary) > 0 {
			fmt.Println(colorize(colorBold, "\nSummary:"))
			var pretty any
			if err := json.Unmarshal(view.Summary, &pretty); err == nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.Encode(pretty)
			}
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{turnCmd, summaryCmd, sessionCmd} {
		c.Flags().String("owner", "", "founder identifier the call is made for")
		c.Flags().String("session", "", "session ID")
	}
	turnCmd.Flags().String("answer", "", "answer to the pending question")
}
