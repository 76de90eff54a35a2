// Command cli posts a single command envelope to a running settlement
// service through its Hub callback endpoint.
//
//	cli [-url http://localhost:3000] [-source cli] <Kind> [key=value ...]
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/amirasaad/settlement/infra/hubclient"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/amirasaad/settlement/webapi"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

var (
	okColor  = color.New(color.FgGreen, color.Bold)
	errColor = color.New(color.FgRed, color.Bold)
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, errColor.Sprint("error: "+err.Error()))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	baseURL := fs.String("url", "http://localhost:3000", "settlement service base URL")
	source := fs.String("source", "cli", "source service name echoed back as target")
	correlation := fs.String("correlation", "", "correlation id (random when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usage()
	}

	kind := hub.Kind(fs.Arg(0))
	topic := kind.RequestTopic()
	if topic == "" {
		return fmt.Errorf("unknown kind %q\n%w", kind, usage())
	}
	data, err := parsePairs(fs.Args()[1:])
	if err != nil {
		return err
	}
	if *correlation == "" {
		*correlation = uuid.NewString()
	}

	body, err := json.Marshal(map[string]any{"topic": topic, "data": data})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+webapi.CallbackPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(hubclient.HeaderCorrelationID, *correlation)
	req.Header.Set(hubclient.HeaderSource, *source)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("service answered %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	fmt.Fprintln(out, okColor.Sprint("sent"), topic, "correlationId="+*correlation)
	fmt.Fprintln(out, "the result is published to", kind.ResponseTopic())
	return nil
}

// parsePairs turns key=value arguments into envelope data.
func parsePairs(pairs []string) (map[string]any, error) {
	data := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", p)
		}
		data[k] = v
	}
	return data, nil
}

func usage() error {
	kinds := make([]string, 0, len(hub.Kinds()))
	for _, k := range hub.Kinds() {
		kinds = append(kinds, k.String())
	}
	return errors.New("usage: cli [-url URL] [-source NAME] <kind> [key=value ...]\nkinds: " + strings.Join(kinds, ", "))
}
