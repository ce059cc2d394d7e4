package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codewiki/internal/repo"
)

var (
	registerURL      string
	registerArchive  string
	registerPath     string
	registerBranch   string
	registerUser     string
	registerProvider string
	registerOrg      string
	registerName     string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a repository and materialize it on disk",
	Long: `Register a repository from a Git URL, an archive file (.zip, .tar,
.tar.gz, .tgz, .br), or an existing local directory. Exactly one source
must be given. The source tree is materialized under the configured
storage root and a wiki document is reserved for it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		r, err := a.repos.Register(cmd.Context(), repo.RegisterRequest{
			UserID:       registerUser,
			Provider:     registerProvider,
			RemoteURL:    registerURL,
			ArchivePath:  registerArchive,
			LocalPath:    registerPath,
			Branch:       registerBranch,
			Organization: registerOrg,
			Name:         registerName,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s/%s (%s)\n", r.Organization, r.Name, r.ID)
		fmt.Printf("  provider: %s\n", r.Provider)
		fmt.Printf("  path:     %s\n", r.LocalPath)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerURL, "url", "", "remote Git URL to clone")
	registerCmd.Flags().StringVar(&registerArchive, "archive", "", "archive file to extract")
	registerCmd.Flags().StringVar(&registerPath, "path", "", "existing local directory")
	registerCmd.Flags().StringVar(&registerBranch, "branch", "", "branch to clone (remote URLs only)")
	registerCmd.Flags().StringVar(&registerUser, "user", "default", "owning user id")
	registerCmd.Flags().StringVar(&registerProvider, "provider", "", "provider hint (github, gitee, ...)")
	registerCmd.Flags().StringVar(&registerOrg, "org", "", "organization (derived from URL when omitted)")
	registerCmd.Flags().StringVar(&registerName, "name", "", "repository name (derived from URL when omitted)")
}
