package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pegnet/pegfollow/internal/asset"
)

// Exit codes per the node's external interface contract: 0 success,
// 1 user error (invalid address / unknown ticker), 2 adapter unavailable.
const (
	exitOK          = 0
	exitUserError   = 1
	exitUnavailable = 2
)

var rpcEndpoint string

func main() {
	root := &cobra.Command{
		Use:   "pegfollow-cli",
		Short: "Query a running pegfollow-node over its JSON-RPC surface",
	}
	root.PersistentFlags().StringVar(&rpcEndpoint, "endpoint", "http://localhost:8787/rpc", "pegfollow-node JSON-RPC endpoint")

	root.AddCommand(
		balanceCmd(),
		ratesCmd(),
		winnersCmd(),
		syncHeadCmd(),
		factoidHeadCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call issues a JSON-RPC request and returns the decoded result, or exits
// the process directly with the exit code appropriate to the failure.
func call(method string, params any) json.RawMessage {
	reqBody, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: encoding request: %v\n", err)
		os.Exit(exitUserError)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	httpResp, err := client.Post(rpcEndpoint, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: node unreachable: %v\n", err)
		os.Exit(exitUnavailable)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: reading response: %v\n", err)
		os.Exit(exitUnavailable)
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "error: malformed response: %v\n", err)
		os.Exit(exitUnavailable)
	}

	if resp.Error != nil {
		if resp.Error.Code == -32000 {
			fmt.Fprintf(os.Stderr, "error: %s\n", resp.Error.Message)
			os.Exit(exitUnavailable)
		}
		fmt.Fprintf(os.Stderr, "error: %s\n", resp.Error.Message)
		os.Exit(exitUserError)
	}

	return resp.Result
}

func printJSON(v json.RawMessage) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, v, "", "  "); err != nil {
		fmt.Println(string(v))
		return
	}
	fmt.Println(pretty.String())
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show all tracked balances and native FCT balance for an address",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			address := args[0]
			if !asset.IsValid(address) {
				fmt.Fprintf(os.Stderr, "error: invalid address %q\n", address)
				os.Exit(exitUserError)
			}
			printJSON(call("get_balances", map[string]string{"address": address}))
			os.Exit(exitOK)
		},
	}
}

func ratesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates <height>",
		Short: "Show the winning rate table for a graded height",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			height := parseHeightOrExit(args[0])
			printJSON(call("get_rates", map[string]uint32{"height": height}))
			os.Exit(exitOK)
		},
	}
}

func winnersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "winners [height]",
		Short: "Show the ten winning entry hashes for a height (defaults to the latest graded height)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				printJSON(call("get_latest_winners", map[string]any{}))
				os.Exit(exitOK)
			}
			height := parseHeightOrExit(args[0])
			printJSON(call("get_winners", map[string]uint32{"height": height}))
			os.Exit(exitOK)
		},
	}
}

func syncHeadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-head",
		Short: "Show the node's current sync head",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printJSON(call("get_sync_head", map[string]any{}))
			os.Exit(exitOK)
		},
	}
}

func factoidHeadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "factoid-head",
		Short: "Show the burn scanner's independent progress watermark",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printJSON(call("get_factoid_head", map[string]any{}))
			os.Exit(exitOK)
		},
	}
}

func parseHeightOrExit(arg string) uint32 {
	var height uint32
	if _, err := fmt.Sscanf(arg, "%d", &height); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid height %q\n", arg)
		os.Exit(exitUserError)
	}
	return height
}
