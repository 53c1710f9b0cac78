package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dashfin/internal/classifier"
	"dashfin/internal/identify"
	"dashfin/internal/webhook"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <message>",
		Short: "Classify a chat message without storing it",
		Long: `Run the webhook classifier on a message and print the extracted
amount, category, confidence and paying card. Uses the built-in card
catalog, so no database is needed.`,
		Example: `  dashfin classify "Gastei 45,90 no restaurante hoje"
  dashfin classify --type audio --json "Recebi o salário de 3500"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}
	cmd.Flags().String("type", "text", "message type (text, image, audio)")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	messageType, _ := cmd.Flags().GetString("type")
	asJSON, _ := cmd.Flags().GetBool("json")

	origin, err := webhook.Origin(messageType)
	if err != nil {
		return fmt.Errorf("%w: %q", err, messageType)
	}

	catalog := identify.DefaultCatalog()
	catalog.Defaults = identifyDefaults(cfg)

	result := classifier.Classify(strings.Join(args, " "), origin, catalog)

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(out, result, origin)
	return nil
}

func printResult(w io.Writer, r classifier.Result, origin classifier.Origin) {
	fmt.Fprintf(w, "Tipo:        %s\n", r.Tipo())
	fmt.Fprintf(w, "Valor:       %s\n", r.Amount.StringFixed(2))
	fmt.Fprintf(w, "Categoria:   %s\n", r.Category)
	fmt.Fprintf(w, "Confiança:   %.1f\n", r.Confidence)
	fmt.Fprintf(w, "Origem:      %s\n", origin.Source())
	if r.NeedsReview() {
		fmt.Fprintln(w, "Revisão:     necessária")
	}
	if r.Amount.IsZero() {
		fmt.Fprintln(w, "Nenhum valor encontrado; a mensagem não seria registrada")
	}
	if id := r.CardIdentification; id != nil {
		fmt.Fprintf(w, "Cartão:      %s (%s, %.1f)\n", id.Name(), id.Method, id.Confidence)
	}
}
