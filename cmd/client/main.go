// Command client submits one command to a contact tracing server and prints
// the result as JSON.
//
// Usage:
//
//	client [-a address] [-t token] <command> '<json payload>'
//
// where command is one of create_profile, update_push_token, report_location,
// add_contacts, clear_contact_location or export_contacts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/contacttrace/internal/client/client"
)

func main() {

	addr := flag.String("a", "localhost:50051", "server address")
	token := flag.String("t", "", "access token")
	timeout := flag.Duration("timeout", 10*time.Second, "call timeout")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: client [-a address] [-t token] <command> '<json payload>'")
		os.Exit(2)
	}

	c, err := client.NewGRPCClient(*addr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer c.Close()

	if *token != "" {
		c.SetAccessToken(*token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := c.SendJSON(ctx, flag.Arg(0), []byte(flag.Arg(1)))
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
