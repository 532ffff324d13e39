package types

type Preferences struct {
	Template        string `json:"template"`
	ShowToolDetails bool   `json:"show_tool_details"`
}
