package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
)

var initiate = cli.Command{
	Name:  "initiate",
	Usage: "start a new swap from the source to the destination chain",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "amount",
			Usage:    "source amount to swap, in smallest units",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "receiver",
			Usage:    "address credited on the destination chain",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "min_amount",
			Usage: "least destination amount accepted, in smallest units",
		},
		&cli.StringFlag{
			Name:  "release_policy",
			Usage: "when to release the secret: full or any",
		},
	},
	Action: initiateAction,
}

var status = cli.Command{
	Name:      "status",
	Usage:     "get the current state of a swap",
	ArgsUsage: "<swap_id>",
	Action:    statusAction,
}

var list = cli.Command{
	Name:  "list",
	Usage: "list all swaps",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "status",
			Usage: "only list swaps in the given status, can be repeated",
		},
	},
	Action: listAction,
}

var logs = cli.Command{
	Name:      "logs",
	Usage:     "show the log of a swap",
	ArgsUsage: "<swap_id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "follow",
			Aliases: []string{"f"},
			Usage:   "stream new entries until the swap is finalized",
		},
		&cli.IntFlag{
			Name:  "from",
			Usage: "first sequence number to show",
		},
	},
	Action: logsAction,
}

var history = cli.Command{
	Name:      "history",
	Usage:     "list the on-chain transactions of a swap",
	ArgsUsage: "<swap_id>",
	Action:    historyAction,
}

var orders = cli.Command{
	Name:   "orders",
	Usage:  "list the orders open to resolvers",
	Action: ordersAction,
}

func initiateAction(ctx *cli.Context) error {
	req := map[string]string{
		"sourceAmount":       ctx.String("amount"),
		"destinationAddress": ctx.String("receiver"),
	}
	if s := ctx.String("min_amount"); len(s) > 0 {
		req["destinationAmount"] = s
	}
	if s := ctx.String("release_policy"); len(s) > 0 {
		req["releasePolicy"] = s
	}

	body, err := getClient(ctx).post(ctx.Context, "/v1/swaps", req)
	if err != nil {
		return err
	}
	printRespJSON(body)
	return nil
}

func statusAction(ctx *cli.Context) error {
	swapID, err := swapIDArg(ctx)
	if err != nil {
		return err
	}
	body, err := getClient(ctx).get(ctx.Context, "/v1/swaps/"+swapID)
	if err != nil {
		return err
	}
	printRespJSON(body)
	return nil
}

func listAction(ctx *cli.Context) error {
	path := "/v1/swaps"
	if statuses := ctx.StringSlice("status"); len(statuses) > 0 {
		query := url.Values{}
		for _, s := range statuses {
			query.Add("status", s)
		}
		path += "?" + query.Encode()
	}
	body, err := getClient(ctx).get(ctx.Context, path)
	if err != nil {
		return err
	}
	printRespJSON(body)
	return nil
}

func historyAction(ctx *cli.Context) error {
	swapID, err := swapIDArg(ctx)
	if err != nil {
		return err
	}
	body, err := getClient(ctx).get(ctx.Context, "/v1/swaps/"+swapID+"/txs")
	if err != nil {
		return err
	}
	printRespJSON(body)
	return nil
}

func ordersAction(ctx *cli.Context) error {
	body, err := getClient(ctx).get(ctx.Context, "/v1/orders")
	if err != nil {
		return err
	}
	printRespJSON(body)
	return nil
}

type logEntry struct {
	Seq       int    `json:"seq"`
	Timestamp int64  `json:"timestamp"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func logsAction(ctx *cli.Context) error {
	swapID, err := swapIDArg(ctx)
	if err != nil {
		return err
	}
	client := getClient(ctx)
	path := fmt.Sprintf("/v1/swaps/%s/logs?from=%d", swapID, ctx.Int("from"))

	if !ctx.Bool("follow") {
		body, err := client.get(ctx.Context, path)
		if err != nil {
			return err
		}
		printRespJSON(body)
		return nil
	}

	wsURL := strings.Replace(client.url, "http", "ws", 1)
	wsPath := fmt.Sprintf("/v1/swaps/%s/logs/ws?from=%d", swapID, ctx.Int("from"))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx.Context, wsURL+wsPath, nil)
	if err != nil {
		return fmt.Errorf("failed to open log stream: %w", err)
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		entry := logEntry{}
		if err := json.Unmarshal(msg, &entry); err != nil {
			return fmt.Errorf("invalid log entry: %w", err)
		}
		fmt.Printf("%d\t%s\t%s\n", entry.Seq, entry.Status, entry.Message)
	}
}

func swapIDArg(ctx *cli.Context) (string, error) {
	swapID := ctx.Args().First()
	if len(swapID) <= 0 {
		return "", fmt.Errorf("missing swap id")
	}
	return swapID, nil
}
