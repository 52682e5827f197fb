package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/syncbridge/internal/credential"
	"github.com/nhle/syncbridge/internal/model"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Store credentials and configure a tenant interactively",
	Long: `Configure a tenant interactively.

Credentials (Notion token or OAuth session, Azure DevOps personal access
token) are stored in the system keyring; everything else is written to the
configuration file. Running connect for an existing tenant overwrites its
stored credentials and connection settings but keeps its mapping rules.`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().String("tenant", "", "tenant id to configure")

	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	var (
		authMode    = model.NotionAuthToken
		notionToken string

		clientID     string
		clientSecret string
		accessToken  string
		refreshToken string

		databaseIDs string
		orgURL      string
		project     string
		pat         string

		statusProp   = "Status"
		assigneeProp = "Assignee"
		backLinkProp = "Work Item"
		subtasksProp string
	)

	if existing, ok := cfg.Tenants[tenantID]; ok {
		databaseIDs = strings.Join(existing.Notion.DatabaseIDs, ", ")
		orgURL = existing.AzDO.OrgURL
		project = existing.AzDO.Project
		if existing.Notion.AuthMode != "" {
			authMode = existing.Notion.AuthMode
		}
		if existing.Notion.Bindings.Status != "" {
			statusProp = existing.Notion.Bindings.Status
		}
		if existing.Notion.Bindings.Assignee != "" {
			assigneeProp = existing.Notion.Bindings.Assignee
		}
		if existing.Notion.Bindings.BackLink != "" {
			backLinkProp = existing.Notion.Bindings.BackLink
		}
		subtasksProp = existing.Notion.Bindings.Subtasks
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Tenant id").
				Description("Short identifier for this workspace pair, e.g. acme").
				Value(&tenantID).
				Validate(required("tenant id")),
			huh.NewSelect[string]().
				Title("Notion authentication").
				Options(
					huh.NewOption("Internal integration token", model.NotionAuthToken),
					huh.NewOption("OAuth (public integration)", model.NotionAuthOAuth),
				).
				Value(&authMode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Notion integration token").
				EchoMode(huh.EchoModePassword).
				Value(&notionToken).
				Validate(required("token")),
		).WithHideFunc(func() bool { return authMode != model.NotionAuthToken }),
		huh.NewGroup(
			huh.NewInput().Title("OAuth client id").
				Value(&clientID).Validate(required("client id")),
			huh.NewInput().Title("OAuth client secret").
				EchoMode(huh.EchoModePassword).
				Value(&clientSecret).Validate(required("client secret")),
			huh.NewInput().Title("Access token").
				EchoMode(huh.EchoModePassword).
				Value(&accessToken).Validate(required("access token")),
			huh.NewInput().Title("Refresh token").
				EchoMode(huh.EchoModePassword).
				Value(&refreshToken),
		).WithHideFunc(func() bool { return authMode != model.NotionAuthOAuth }),
		huh.NewGroup(
			huh.NewInput().
				Title("Notion database ids").
				Description("Comma separated").
				Value(&databaseIDs).
				Validate(required("database ids")),
			huh.NewInput().Title("Status property").Value(&statusProp),
			huh.NewInput().Title("Assignee property").Value(&assigneeProp),
			huh.NewInput().
				Title("Work item link property").
				Description("URL property that receives the work item link").
				Value(&backLinkProp),
			huh.NewInput().
				Title("Subtasks property").
				Description("Relation property, leave empty to skip subtasks").
				Value(&subtasksProp),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Azure DevOps organization URL").
				Placeholder("https://dev.azure.com/acme").
				Value(&orgURL).
				Validate(required("organization URL")),
			huh.NewInput().Title("Project").
				Value(&project).Validate(required("project")),
			huh.NewInput().Title("Personal access token").
				EchoMode(huh.EchoModePassword).
				Value(&pat).Validate(required("personal access token")),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	switch authMode {
	case model.NotionAuthToken:
		if err := credential.Set(credential.NotionTokenKey(tenantID), notionToken); err != nil {
			return err
		}
	case model.NotionAuthOAuth:
		state := credential.OAuthState{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ClientID:     clientID,
			ClientSecret: clientSecret,
		}
		if err := credential.SaveOAuthState(tenantID, state); err != nil {
			return err
		}
	}

	if err := credential.Set(credential.AzDOPATKey(tenantID), pat); err != nil {
		return err
	}

	tenant := cfg.Tenants[tenantID]
	tenant.Notion.AuthMode = authMode
	tenant.Notion.DatabaseIDs = splitIDs(databaseIDs)
	tenant.Notion.Bindings.Status = statusProp
	tenant.Notion.Bindings.Assignee = assigneeProp
	tenant.Notion.Bindings.BackLink = backLinkProp
	tenant.Notion.Bindings.Subtasks = subtasksProp
	tenant.AzDO.OrgURL = strings.TrimRight(orgURL, "/")
	tenant.AzDO.Project = project

	if cfg.Tenants == nil {
		cfg.Tenants = map[string]model.TenantConfig{}
	}
	cfg.Tenants[tenantID] = tenant

	if err := model.SaveConfig(configPath, cfg); err != nil {
		return err
	}

	fmt.Printf("tenant %s configured, credentials stored in the keyring\n", tenantID)
	fmt.Printf("edit %s to add status and assignee mapping rules\n", configPath)
	return nil
}

// required returns a huh validator rejecting empty input.
func required(field string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// splitIDs parses a comma separated id list.
func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
