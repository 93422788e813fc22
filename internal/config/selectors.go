// File: internal/config/selectors.go
// Selector chains for every UI affordance the automation touches. Each chain is
// ordered: the first selector that matches an element wins. The markup of the
// target app changes without notice, so every chain is overridable from config.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SelectorsConfig holds the tunable selector chains.
type SelectorsConfig struct {
	InputSurface    []string `mapstructure:"input_surface" yaml:"input_surface"`
	PromptArea      []string `mapstructure:"prompt_area" yaml:"prompt_area"`
	SendButton      []string `mapstructure:"send_button" yaml:"send_button"`
	StopIndicator   []string `mapstructure:"stop_indicator" yaml:"stop_indicator"`
	Response        []string `mapstructure:"response" yaml:"response"`
	Thoughts        []string `mapstructure:"thoughts" yaml:"thoughts"`
	ToolsTrigger    []string `mapstructure:"tools_trigger" yaml:"tools_trigger"`
	ToolOption      []string `mapstructure:"tool_option" yaml:"tool_option"`
	NewConversation []string `mapstructure:"new_conversation" yaml:"new_conversation"`
	SignIn          []string `mapstructure:"sign_in" yaml:"sign_in"`
	GeneratedImage  []string `mapstructure:"generated_image" yaml:"generated_image"`
	ImageButton     []string `mapstructure:"image_button" yaml:"image_button"`
	UploadedImage   []string `mapstructure:"uploaded_image" yaml:"uploaded_image"`
	DownloadButton  []string `mapstructure:"download_button" yaml:"download_button"`
	// GeneratedImageURLFragment identifies full-size generated images by their CDN path.
	GeneratedImageURLFragment string `mapstructure:"generated_image_url_fragment" yaml:"generated_image_url_fragment"`
	// MinGeneratedImageSize rejects icons and avatars in the fallback image scan.
	MinGeneratedImageSize int `mapstructure:"min_generated_image_size" yaml:"min_generated_image_size"`
}

func setSelectorDefaults(v *viper.Viper) {
	v.SetDefault("selectors.input_surface", []string{
		`div[role="textbox"]`,
		`.ql-editor`,
		`rich-textarea`,
		`[contenteditable="true"]`,
	})
	v.SetDefault("selectors.prompt_area", []string{
		`div[role="textbox"][aria-label="Buraya istem girin"]`,
		`div[role="textbox"][aria-label="Enter a prompt here"]`,
		`.ql-editor`,
	})
	v.SetDefault("selectors.send_button", []string{
		`button.send-button`,
		`button[aria-label="Mesaj gönder"]`,
		`button[aria-label="Send message"]`,
	})
	v.SetDefault("selectors.stop_indicator", []string{
		`button[aria-label="Yanıtı durdur"]`,
		`button[aria-label="Stop response"]`,
	})
	v.SetDefault("selectors.response", []string{
		`model-response`,
		`.model-response-text`,
		`.response-content`,
		`.message-content`,
		`[data-message-author-role="model"]`,
		`.markdown-content`,
	})
	v.SetDefault("selectors.thoughts", []string{
		`.thoughts-header-button`,
		`.thoughts-content`,
		`.thinking-content`,
	})
	v.SetDefault("selectors.tools_trigger", []string{
		`button.toolbox-drawer-button`,
		`button[class*="toolbox-drawer"]`,
		`button.toolbox-drawer-button-with-label`,
	})
	v.SetDefault("selectors.tool_option", []string{
		`button.toolbox-drawer-item-list-button`,
		`button[class*="toolbox-drawer-item"]`,
		`.mat-mdc-list-item button`,
	})
	v.SetDefault("selectors.new_conversation", []string{
		`button[aria-label="Yeni sohbet"]`,
		`button[aria-label="New chat"]`,
		`button[class*="side-nav-action-"]`,
		`a[href="/app"]`,
	})
	v.SetDefault("selectors.sign_in", []string{
		`button[data-mdc-dialog-action="sign-in"]`,
		`[aria-label="Google hesabıyla oturum aç"]`,
		`[aria-label="Sign in with Google"]`,
		`a[href*="accounts.google.com"]`,
	})
	v.SetDefault("selectors.generated_image", []string{
		`button.image-button img`,
		`.generated-image img`,
	})
	v.SetDefault("selectors.image_button", []string{
		`button.image-button`,
		`.generated-image-button`,
	})
	v.SetDefault("selectors.uploaded_image", []string{
		`img[src*="blob:"]`,
		`img[src*="data:"]`,
		`.uploaded-image`,
		`.image-preview`,
	})
	v.SetDefault("selectors.download_button", []string{
		`button[aria-label="Tam boyutlu resmi indir"]`,
		`button[aria-label*="indir"]`,
		`button[aria-label*="download"]`,
		`button[aria-label*="Download"]`,
	})
	v.SetDefault("selectors.generated_image_url_fragment", "googleusercontent.com/gg/")
	v.SetDefault("selectors.min_generated_image_size", 300)
}

// Validate requires every chain to have at least one entry.
func (s *SelectorsConfig) Validate() error {
	chains := []struct {
		name  string
		chain []string
	}{
		{"input_surface", s.InputSurface},
		{"prompt_area", s.PromptArea},
		{"send_button", s.SendButton},
		{"stop_indicator", s.StopIndicator},
		{"response", s.Response},
		{"tools_trigger", s.ToolsTrigger},
		{"tool_option", s.ToolOption},
		{"new_conversation", s.NewConversation},
		{"sign_in", s.SignIn},
		{"generated_image", s.GeneratedImage},
		{"image_button", s.ImageButton},
		{"uploaded_image", s.UploadedImage},
		{"download_button", s.DownloadButton},
	}
	for _, c := range chains {
		if len(c.chain) == 0 {
			return fmt.Errorf("%s must contain at least one selector", c.name)
		}
		for i, sel := range c.chain {
			if sel == "" {
				return fmt.Errorf("%s[%d] is empty", c.name, i)
			}
		}
	}
	if s.GeneratedImageURLFragment == "" {
		return fmt.Errorf("generated_image_url_fragment is required")
	}
	return nil
}
