package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jibmail/jib/internal/address"
	"github.com/jibmail/jib/internal/delivery"
	"github.com/jibmail/jib/internal/spool"
)

var (
	sendFrom  string
	sendRcpts []string

	sendCmd = &cobra.Command{
		Use:   "send [message-file]",
		Short: "Deliver a message to its foreign recipients",
		Long: `Reads the message body from the given file (or stdin when the argument
is "-" or omitted) and attempts delivery to every foreign recipient. Local
and postmaster recipients are left to the inbound side.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSend,
	}
)

func init() {
	sendCmd.Flags().StringVarP(&sendFrom, "from", "f", "", "Envelope sender address (empty for the null sender)")
	sendCmd.Flags().StringArrayVarP(&sendRcpts, "rcpt", "r", nil, "Envelope recipient address (repeatable)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	if len(sendRcpts) == 0 {
		return fmt.Errorf("at least one --rcpt is required")
	}

	reverse := address.NullReversePath()
	if sendFrom != "" {
		sender, err := address.ParsePath(sendFrom)
		if err != nil {
			return fmt.Errorf("invalid sender: %w", err)
		}
		reverse = address.ReverseFrom(sender)
	}

	var forwards []address.ForwardPath
	for _, raw := range sendRcpts {
		fp, err := address.ParseForwardPath(raw)
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", raw, err)
		}
		forwards = append(forwards, fp)
	}

	data, err := readBody(args)
	if err != nil {
		return err
	}

	deliveryCfg := cfg.DeliveryConfig()
	router := delivery.NewRouter(deliveryCfg)
	foreign, local := router.Partition(forwards)
	for _, fp := range local {
		slog.Info("recipient is handled locally, skipping dispatch", "recipient", fp.String())
	}
	if len(foreign) == 0 {
		fmt.Println("No foreign recipients; nothing to dispatch.")
		return nil
	}

	sink, err := spool.New(cfg.Spool.Dir)
	if err != nil {
		return err
	}
	dispatcher, err := delivery.NewDispatcher(deliveryCfg, nil, nil, sink)
	if err != nil {
		return err
	}

	result, err := dispatcher.Dispatch(context.Background(), reverse, foreign, data)
	if err != nil {
		return err
	}

	for _, gr := range result.Groups {
		switch {
		case gr.Failed():
			fmt.Printf("%s: FAILED (%s): %s\n", gr.Domain, gr.Err.Type, gr.Err.Message)
		default:
			fmt.Printf("%s: delivered %d, rejected %d\n", gr.Domain, len(gr.Delivered), len(gr.Rejected))
		}
	}
	fmt.Printf("Delivered %d/%d recipients in %s\n",
		result.DeliveredRecipients, result.TotalRecipients, result.Duration)

	if !result.Success() {
		os.Exit(1)
	}
	return nil
}

// readBody loads the message body and splits it into bare text lines.
func readBody(args []string) ([]string, error) {
	var raw []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n"), nil
}
