// landchat CLI - command line client for a landchat server
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/eldtechnologies/landchat/clients/go/landchat"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := landchat.NewClient(os.Getenv("LANDCHAT_URL"), os.Getenv("LANDCHAT_TOKEN"))
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "history":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: landchat history <user_a> <user_b> [page]")
			os.Exit(1)
		}
		page := 1
		if len(os.Args) > 4 {
			page, _ = strconv.Atoi(os.Args[4])
		}
		msgs, err := client.History(ctx, os.Args[2], os.Args[3], page)
		exitOnError(err)
		for i := len(msgs) - 1; i >= 0; i-- {
			m := msgs[i]
			fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("2006-01-02 15:04:05"), m.SenderID, m.Body)
		}

	case "send":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: landchat send <from> <to> <message>")
			os.Exit(1)
		}
		msg, err := client.Send(ctx, landchat.SendRequest{SenderID: os.Args[2], ReceiverID: os.Args[3], Message: os.Args[4]})
		exitOnError(err)
		fmt.Printf("Sent: %s\n", msg.ID)

	case "chats":
		var err error
		var chats any
		if len(os.Args) > 2 {
			chats, err = client.Chats(ctx, os.Args[2])
		} else {
			chats, err = client.AdminChats(ctx)
		}
		exitOnError(err)
		printJSON(chats)

	case "admin":
		resp, err := client.AdminProfile(ctx)
		exitOnError(err)
		printJSON(resp)

	case "listen":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: landchat listen <user_id>")
			os.Exit(1)
		}
		sock, err := client.Dial(ctx, os.Args[2])
		exitOnError(err)
		go func() {
			<-ctx.Done()
			sock.Close()
		}()
		for {
			event, err := sock.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				fmt.Fprintln(os.Stderr, "Error:", err)
				continue
			}
			fmt.Printf("[%s] %s -> %s: %s\n", event.Timestamp.Local().Format("15:04:05"), event.SenderID, event.ReceiverID, event.Body)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`landchat CLI

Usage: landchat <command> [options]

Commands:
  history <a> <b> [page]   Show a conversation, oldest first
  send <from> <to> <msg>   Send a message (needs LANDCHAT_TOKEN)
  chats [recipient]        Chat list for the admin or a recipient
  admin                    Show the admin profile
  listen <user_id>         Stream messages over the socket
  health                   Check server health

Environment:
  LANDCHAT_URL     Server URL (default: http://localhost:8000)
  LANDCHAT_TOKEN   Bearer token from tokenctl sign`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
