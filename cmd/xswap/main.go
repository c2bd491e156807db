package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tdex-network/xswapd/pkg/httputil"
	"github.com/urfave/cli/v2"
)

const defaultDaemonURL = "http://localhost:8080"

var daemonFlag = &cli.StringFlag{
	Name:    "daemon",
	Usage:   "url of the swap daemon HTTP API",
	Value:   defaultDaemonURL,
	EnvVars: []string{"XSWAP_DAEMON_URL"},
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "xswap"
	app.Usage = "Command line interface for the xswapd cross-chain swap daemon"
	app.Flags = []cli.Flag{daemonFlag}
	app.Commands = append(
		app.Commands,
		&initiate,
		&status,
		&list,
		&logs,
		&history,
		&orders,
	)
	return app
}

type daemonClient struct {
	url    string
	client *httputil.Client
}

func getClient(ctx *cli.Context) *daemonClient {
	return &daemonClient{
		url:    strings.TrimSuffix(ctx.String(daemonFlag.Name), "/"),
		client: httputil.NewClient(30 * time.Second),
	}
}

func (c *daemonClient) get(ctx context.Context, path string) ([]byte, error) {
	status, body, err := c.client.Get(ctx, c.url+path, nil)
	if err != nil {
		return nil, err
	}
	return checkResponse(status, body)
}

func (c *daemonClient) post(ctx context.Context, path string, req interface{}) ([]byte, error) {
	status, body, err := c.client.Post(ctx, c.url+path, req, nil)
	if err != nil {
		return nil, err
	}
	return checkResponse(status, body)
}

func checkResponse(status int, body []byte) ([]byte, error) {
	if httputil.IsSuccess(status) {
		return body, nil
	}
	errResp := struct {
		Error string `json:"error"`
	}{}
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Error) > 0 {
		return nil, fmt.Errorf("%s", errResp.Error)
	}
	return nil, fmt.Errorf("daemon replied with status %d", status)
}

func printRespJSON(body []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "\t"); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(out.String())
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[xswap] %v\n", err)
	os.Exit(1)
}
