// view_connect.go: backend selection screen.
//
// This is the first screen shown when nlsql starts. It lists saved
// server profiles and a form for the backend URL, request timeout and an
// optional SSH tunnel. Connecting runs the /health check; the main tabs
// only open once the backend answered. Profiles are saved to
// <data-dir>/profiles.json.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DachengChen/nlsql/backend"
	"github.com/DachengChen/nlsql/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldSaved = iota
	fieldName
	fieldAPIURL
	fieldTimeout
	fieldSSHEnabled
	fieldSSHHost
	fieldSSHPort
	fieldSSHUser
	fieldSSHKey
	fieldKnownHosts
	fieldConnect
	fieldSave
	fieldDelete
	fieldCount // sentinel
)

var fieldLabels = map[int]string{
	fieldSaved:      "Saved",
	fieldName:       "Name",
	fieldAPIURL:     "API URL",
	fieldTimeout:    "Timeout",
	fieldSSHEnabled: "SSH Tunnel",
	fieldSSHHost:    "SSH Host",
	fieldSSHPort:    "SSH Port",
	fieldSSHUser:    "SSH User",
	fieldSSHKey:     "SSH Key",
	fieldKnownHosts: "Known Hosts",
	fieldConnect:    "Connect",
	fieldSave:       "Save",
	fieldDelete:     "Delete",
}

// ConnectView is the backend selection form.
type ConnectView struct {
	base       config.Config // flags/env/file settings the form starts from
	profiles   *config.ProfileStore
	fields     []string
	focusField int
	savedIdx   int
	editing    bool
	err        error
	statusMsg  string
	connecting bool
	width      int
	height     int
	sshKeys    []string
	sshKeyIdx  int
}

// NewConnectView creates the form prefilled from cfg, or from the
// profile cfg names.
func NewConnectView(cfg config.Config, profiles *config.ProfileStore) *ConnectView {
	v := &ConnectView{
		base:       cfg,
		profiles:   profiles,
		fields:     make([]string, fieldCount),
		focusField: fieldAPIURL,
	}

	v.fields[fieldAPIURL] = cfg.APIURL
	v.fields[fieldTimeout] = cfg.Timeout.String()
	v.fields[fieldSSHEnabled] = "no"
	v.fields[fieldSSHPort] = "22"
	if cfg.SSH.Enabled {
		v.fields[fieldSSHEnabled] = "yes"
		v.fields[fieldSSHHost] = cfg.SSH.Host
		v.fields[fieldSSHPort] = fmt.Sprint(cfg.SSH.Port)
		v.fields[fieldSSHUser] = cfg.SSH.User
		v.fields[fieldSSHKey] = cfg.SSH.KeyPath
		v.fields[fieldKnownHosts] = cfg.SSH.KnownHostsPath
	}

	for i, p := range profiles.Profiles {
		if p.Name == cfg.Profile {
			v.loadProfile(i)
			v.focusField = fieldSaved
			break
		}
	}

	v.sshKeys = discoverSSHKeys()
	if len(v.sshKeys) > 0 && v.fields[fieldSSHKey] == "" {
		v.fields[fieldSSHKey] = v.sshKeys[0]
	}
	for i, k := range v.sshKeys {
		if k == v.fields[fieldSSHKey] {
			v.sshKeyIdx = i
			break
		}
	}
	return v
}

func (v *ConnectView) Name() string { return "Connect" }

func (v *ConnectView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *ConnectView) WantsTextInput() bool { return v.editing }

func (v *ConnectView) ShortHelp() []KeyBinding {
	if v.editing {
		return []KeyBinding{
			{Key: "Enter", Desc: "confirm"},
			{Key: "Esc", Desc: "done"},
			{Key: "Ctrl+U", Desc: "clear"},
		}
	}
	return []KeyBinding{
		{Key: "↑/↓", Desc: "navigate"},
		{Key: "←/→", Desc: "cycle"},
		{Key: "Enter", Desc: "edit/action"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
}

func (v *ConnectView) Init() tea.Cmd { return nil }

func (v *ConnectView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.editing {
			return v.handleEditing(msg)
		}
		return v.handleNavigation(msg)

	case ConnectedMsg:
		v.connecting = false
		v.statusMsg = ""
		v.err = nil

	case ConnectErrorMsg:
		v.connecting = false
		v.err = msg.Err
		v.statusMsg = ""
	}
	return v, nil
}

func (v *ConnectView) handleNavigation(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "up", "k", "shift+tab":
		v.move(-1)
	case "down", "j", "tab":
		v.move(1)
	case "enter":
		return v.handleAction()
	case "left", "h":
		v.cycle(-1)
	case "right", "l":
		v.cycle(1)
	case "q":
		return v, tea.Quit
	}
	return v, nil
}

// move steps the focus, skipping hidden SSH fields and the saved list
// when it is empty.
func (v *ConnectView) move(dir int) {
	for i := 0; i < fieldCount; i++ {
		v.focusField = (v.focusField + dir + fieldCount) % fieldCount
		if v.visible(v.focusField) {
			return
		}
	}
}

func (v *ConnectView) visible(f int) bool {
	switch {
	case f == fieldSaved:
		return len(v.profiles.Profiles) > 0
	case f >= fieldSSHHost && f <= fieldKnownHosts:
		return v.sshEnabled()
	default:
		return true
	}
}

func (v *ConnectView) cycle(dir int) {
	switch v.focusField {
	case fieldSaved:
		if n := len(v.profiles.Profiles); n > 0 {
			v.loadProfile((v.savedIdx + dir + n) % n)
		}
	case fieldSSHEnabled:
		v.toggleSSH()
	case fieldSSHKey:
		v.cycleSSHKey(dir)
	}
}

func (v *ConnectView) handleEditing(msg tea.KeyMsg) (View, tea.Cmd) {
	field := v.focusField

	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		v.editing = false
	case tea.KeyBackspace:
		if r := []rune(v.fields[field]); len(r) > 0 {
			v.fields[field] = string(r[:len(r)-1])
		}
	case tea.KeyCtrlU:
		v.fields[field] = ""
	case tea.KeySpace:
		v.fields[field] += " "
	case tea.KeyRunes:
		v.fields[field] += string(msg.Runes)
	}
	return v, nil
}

func (v *ConnectView) handleAction() (View, tea.Cmd) {
	switch v.focusField {
	case fieldSaved, fieldConnect:
		return v, v.connect()
	case fieldSSHEnabled:
		v.toggleSSH()
	case fieldSave:
		v.saveProfile()
	case fieldDelete:
		v.deleteProfile()
	case fieldSSHKey:
		if len(v.sshKeys) > 0 {
			v.cycleSSHKey(1)
		} else {
			v.editing = true
		}
	default:
		v.editing = true
	}
	return v, nil
}

// ─────────────────────────────────────────────────────────────
// Connection logic
// ─────────────────────────────────────────────────────────────

// resolve builds the effective configuration from the form.
func (v *ConnectView) resolve() (config.Config, config.Profile, error) {
	p := v.buildProfile()
	cfg := v.base
	if err := p.Apply(&cfg); err != nil {
		return config.Config{}, p, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, p, err
	}
	return cfg, p, nil
}

func (v *ConnectView) connect() tea.Cmd {
	cfg, p, err := v.resolve()
	if err != nil {
		v.err = err
		return nil
	}

	v.connecting = true
	v.statusMsg = "Connecting to " + cfg.APIURL + "..."
	v.err = nil

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+10*time.Second)
		defer cancel()
		conn, err := backend.Connect(ctx, cfg)
		if err != nil {
			return ConnectErrorMsg{Err: err}
		}
		return ConnectedMsg{Conn: conn, Cfg: cfg, Profile: p.Name}
	}
}

func (v *ConnectView) saveProfile() {
	name := strings.TrimSpace(v.fields[fieldName])
	if name == "" {
		v.err = fmt.Errorf("enter a profile name first")
		return
	}
	if _, _, err := v.resolve(); err != nil {
		v.err = err
		return
	}

	p := v.buildProfile()
	v.profiles.Add(p)
	if err := v.profiles.Save(); err != nil {
		v.err = err
		return
	}

	v.statusMsg = fmt.Sprintf("Profile '%s' saved", name)
	v.err = nil
	for i, c := range v.profiles.Profiles {
		if c.Name == name {
			v.savedIdx = i
			break
		}
	}
}

func (v *ConnectView) deleteProfile() {
	if len(v.profiles.Profiles) == 0 {
		return
	}
	name := v.profiles.Profiles[v.savedIdx].Name
	v.profiles.Delete(name)
	if err := v.profiles.Save(); err != nil {
		v.err = err
		return
	}

	v.statusMsg = fmt.Sprintf("Profile '%s' deleted", name)
	v.err = nil
	if v.savedIdx >= len(v.profiles.Profiles) {
		v.savedIdx = 0
	}
	if !v.visible(v.focusField) {
		v.move(1)
	}
}

func (v *ConnectView) buildProfile() config.Profile {
	return config.Profile{
		Name:    strings.TrimSpace(v.fields[fieldName]),
		APIURL:  strings.TrimSpace(v.fields[fieldAPIURL]),
		Timeout: strings.TrimSpace(v.fields[fieldTimeout]),
		SSH: config.SSHEntry{
			Enabled:        v.sshEnabled(),
			Host:           v.fields[fieldSSHHost],
			Port:           v.fields[fieldSSHPort],
			User:           v.fields[fieldSSHUser],
			KeyPath:        v.fields[fieldSSHKey],
			KnownHostsPath: v.fields[fieldKnownHosts],
		},
	}
}

func (v *ConnectView) loadProfile(idx int) {
	if idx < 0 || idx >= len(v.profiles.Profiles) {
		return
	}
	p := v.profiles.Profiles[idx]
	v.fields[fieldName] = p.Name
	v.fields[fieldAPIURL] = p.APIURL
	v.fields[fieldTimeout] = p.Timeout
	if p.Timeout == "" {
		v.fields[fieldTimeout] = v.base.Timeout.String()
	}
	v.fields[fieldSSHEnabled] = "no"
	if p.SSH.Enabled {
		v.fields[fieldSSHEnabled] = "yes"
	}
	v.fields[fieldSSHHost] = p.SSH.Host
	v.fields[fieldSSHPort] = p.SSH.Port
	v.fields[fieldSSHUser] = p.SSH.User
	v.fields[fieldSSHKey] = p.SSH.KeyPath
	v.fields[fieldKnownHosts] = p.SSH.KnownHostsPath
	v.savedIdx = idx

	for i, k := range v.sshKeys {
		if k == p.SSH.KeyPath {
			v.sshKeyIdx = i
			break
		}
	}
}

func (v *ConnectView) sshEnabled() bool {
	return v.fields[fieldSSHEnabled] == "yes"
}

func (v *ConnectView) toggleSSH() {
	if v.sshEnabled() {
		v.fields[fieldSSHEnabled] = "no"
	} else {
		v.fields[fieldSSHEnabled] = "yes"
	}
}

func (v *ConnectView) cycleSSHKey(dir int) {
	if len(v.sshKeys) == 0 {
		return
	}
	v.sshKeyIdx = (v.sshKeyIdx + dir + len(v.sshKeys)) % len(v.sshKeys)
	v.fields[fieldSSHKey] = v.sshKeys[v.sshKeyIdx]
}

// discoverSSHKeys scans ~/.ssh/ for private key files.
func discoverSSHKeys() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	sshDir := filepath.Join(homeDir, ".ssh")
	entries, err := os.ReadDir(sshDir)
	if err != nil {
		return nil
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, ".pub") || strings.HasPrefix(name, "known_hosts") ||
			name == "config" || name == "authorized_keys" {
			continue
		}
		fullPath := filepath.Join(sshDir, name)
		if looksLikePrivateKey(fullPath) {
			keys = append(keys, fullPath)
		}
	}
	return keys
}

func looksLikePrivateKey(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 40)
	n, _ := f.Read(buf)
	header := string(buf[:n])
	return strings.Contains(header, "PRIVATE KEY") || strings.Contains(header, "OPENSSH")
}

// ─────────────────────────────────────────────────────────────
// Rendering
// ─────────────────────────────────────────────────────────────

func (v *ConnectView) View() string {
	width := v.width * 6 / 10
	if width < 50 {
		width = 50
	}
	inputW := width - 26

	var lines []string

	if len(v.profiles.Profiles) > 0 {
		lines = append(lines, sectionHeader("Saved", width-8))
		saved := ""
		for i, p := range v.profiles.Profiles {
			switch {
			case i == v.savedIdx && v.focusField == fieldSaved:
				saved += StyleListItemActive.Render(" ► " + p.Name + " ")
			case i == v.savedIdx:
				saved += lipgloss.NewStyle().Foreground(ColorAccent).Render(" ► " + p.Name + " ")
			default:
				saved += StyleDimmed.Render("   " + p.Name + " ")
			}
		}
		lines = append(lines, saved, "")
	}

	lines = append(lines, sectionHeader("Backend", width-8))
	lines = append(lines, v.renderField(fieldName, inputW))
	lines = append(lines, v.renderField(fieldAPIURL, inputW))
	lines = append(lines, v.renderField(fieldTimeout, inputW))
	lines = append(lines, "")

	lines = append(lines, sectionHeader("SSH Tunnel", width-8))
	lines = append(lines, v.renderToggleField(fieldSSHEnabled))
	if v.sshEnabled() {
		lines = append(lines, v.renderField(fieldSSHHost, inputW))
		lines = append(lines, v.renderField(fieldSSHPort, inputW))
		lines = append(lines, v.renderField(fieldSSHUser, inputW))
		lines = append(lines, v.renderSSHKeyField(inputW))
		lines = append(lines, v.renderField(fieldKnownHosts, inputW))
		if v.fields[fieldKnownHosts] == "" {
			lines = append(lines, StyleWarning.Render("  host key will not be verified"))
		}
	}
	lines = append(lines, "")
	lines = append(lines, v.renderButton(fieldConnect)+"  "+v.renderButton(fieldSave)+"  "+v.renderButton(fieldDelete))

	panel := StyleBorder.Padding(1, 2).Width(width - 2).BorderForeground(ColorAccent).
		Render(strings.Join(lines, "\n"))

	var status string
	switch {
	case v.connecting:
		status = StyleDimmed.Render("⏳ " + v.statusMsg)
	case v.err != nil:
		status = StyleError.Render("✗ " + v.err.Error())
	case v.statusMsg != "":
		status = StyleSuccess.Render("✓ " + v.statusMsg)
	}
	content := panel
	if status != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, panel, status)
	}

	return lipgloss.NewStyle().
		Width(v.width).
		Height(v.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

// sectionHeader renders "── label ─────".
func sectionHeader(label string, width int) string {
	right := width - lipgloss.Width(label) - 4
	if right < 2 {
		right = 2
	}
	return StyleDimmed.Render("──") + " " +
		lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render(label) + " " +
		StyleDimmed.Render(strings.Repeat("─", right))
}

func (v *ConnectView) label(id int) string {
	if v.focusField == id {
		return lipgloss.NewStyle().Width(16).Foreground(ColorAccent).Bold(true).Render("▸ " + fieldLabels[id])
	}
	return lipgloss.NewStyle().Width(16).Foreground(ColorDim).Render(fieldLabels[id])
}

func (v *ConnectView) renderField(id, inputWidth int) string {
	value := v.fields[id]
	if v.focusField != id {
		return v.label(id) + " " + StyleDimmed.Render(value)
	}
	if v.editing {
		value += "█"
	}
	return v.label(id) + " " + lipgloss.NewStyle().Width(inputWidth).Foreground(ColorPrimary).Render(value)
}

func (v *ConnectView) renderToggleField(id int) string {
	if v.fields[id] == "yes" {
		return v.label(id) + " " + lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true).Render("● Enabled")
	}
	return v.label(id) + " " + StyleDimmed.Render("○ Disabled")
}

func (v *ConnectView) renderButton(id int) string {
	if v.focusField == id {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorAccent).
			Padding(0, 2).
			Render("⏎ " + fieldLabels[id])
	}
	return lipgloss.NewStyle().Foreground(ColorDim).Padding(0, 2).Render("  " + fieldLabels[id])
}

func (v *ConnectView) renderSSHKeyField(inputWidth int) string {
	if len(v.sshKeys) == 0 {
		return v.renderField(fieldSSHKey, inputWidth)
	}
	name := filepath.Base(v.fields[fieldSSHKey])
	if v.focusField == fieldSSHKey {
		return v.label(fieldSSHKey) + " " + lipgloss.NewStyle().Foreground(ColorAccent).Render(" ◂ "+name+" ▸ ")
	}
	return v.label(fieldSSHKey) + " " + StyleDimmed.Render(name)
}
