package main

import (
	"os"

	"github.com/crucial707/postfeed/cmd/cli/auth"
	"github.com/crucial707/postfeed/cmd/cli/posts"
	"github.com/crucial707/postfeed/cmd/cli/root"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	posts.InitPosts(rootCmd)

	// cobra already printed the error
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
