package posts

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/crucial707/postfeed/cmd/cli/api"
	"github.com/crucial707/postfeed/cmd/cli/output"
	"github.com/spf13/cobra"
)

// perPage mirrors the API's fixed page size for the page count hint.
const perPage = 2

type creator struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type post struct {
	ID        string  `json:"_id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	ImageURL  string  `json:"imageUrl"`
	Creator   creator `json:"creator"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// ==========================
// Init Posts
// ==========================
func InitPosts(rootCmd *cobra.Command) {
	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Browse and manage posts",
	}

	postsCmd.AddCommand(
		listPostsCmd(),
		getPostCmd(),
		createPostCmd(),
		updatePostCmd(),
		deletePostCmd(),
	)

	rootCmd.AddCommand(postsCmd)
}

// ==========================
// LIST
// ==========================
func listPostsCmd() *cobra.Command {
	var page int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Posts      []post `json:"posts"`
				TotalItems int    `json:"totalItems"`
			}
			path := "/feed/posts?page=" + url.QueryEscape(strconv.Itoa(page))
			if err := api.Do(api.Request{Method: "GET", Path: path, Auth: true}, &out); err != nil {
				return err
			}

			if asJSON {
				return output.RenderJSON(out)
			}

			rows := make([][]interface{}, 0, len(out.Posts))
			for _, p := range out.Posts {
				rows = append(rows, []interface{}{p.ID, p.Title, p.Creator.Name, p.CreatedAt})
			}
			output.RenderTable([]string{"ID", "Title", "Author", "Created"}, rows)

			pages := (out.TotalItems + perPage - 1) / perPage
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d posts)\n", page, max(pages, 1), out.TotalItems)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// ==========================
// GET
// ==========================
func getPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a single post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Post post `json:"post"`
			}
			if err := api.Do(api.Request{Method: "GET", Path: "/feed/post/" + url.PathEscape(args[0]), Auth: true}, &out); err != nil {
				return err
			}
			p := out.Post
			output.RenderTable([]string{"Field", "Value"}, [][]interface{}{
				{"ID", p.ID},
				{"Title", p.Title},
				{"Content", p.Content},
				{"Image", p.ImageURL},
				{"Author", p.Creator.Name},
				{"Created", p.CreatedAt},
				{"Updated", p.UpdatedAt},
			})
			return nil
		},
	}
}

// ==========================
// CREATE
// ==========================
func createPostCmd() *cobra.Command {
	var title, content, image string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post with an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if image == "" {
				return fmt.Errorf("--image is required")
			}
			var out struct {
				Message string `json:"message"`
				Post    post   `json:"post"`
			}
			fields := map[string]string{"title": title, "content": content}
			if err := api.Multipart("POST", "/feed/post", fields, image, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s id=%s\n", out.Message, out.Post.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "post title (min 5 characters)")
	cmd.Flags().StringVar(&content, "content", "", "post content (min 5 characters)")
	cmd.Flags().StringVar(&image, "image", "", "path to a PNG or JPEG file")
	return cmd
}

// ==========================
// UPDATE
// ==========================
func updatePostCmd() *cobra.Command {
	var title, content, image string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a post you own; keeps the current image unless --image is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/feed/post/" + url.PathEscape(args[0])

			var current struct {
				Post post `json:"post"`
			}
			if err := api.Do(api.Request{Method: "GET", Path: path, Auth: true}, &current); err != nil {
				return err
			}
			fields := map[string]string{
				"title":   current.Post.Title,
				"content": current.Post.Content,
			}
			if cmd.Flags().Changed("title") {
				fields["title"] = title
			}
			if cmd.Flags().Changed("content") {
				fields["content"] = content
			}
			if image == "" {
				fields["image"] = current.Post.ImageURL
			}

			var out struct {
				Message string `json:"message"`
			}
			if err := api.Multipart("PUT", path, fields, image, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&content, "content", "", "new content")
	cmd.Flags().StringVar(&image, "image", "", "path to a replacement PNG or JPEG file")
	return cmd
}

// ==========================
// DELETE
// ==========================
func deletePostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a post you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Message string `json:"message"`
			}
			if err := api.Do(api.Request{Method: "DELETE", Path: "/feed/post/" + url.PathEscape(args[0]), Auth: true}, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return nil
		},
	}
}
