// Package configuration reads the INI-style settings file shared by every
// part of the server.
package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LocalOverridePath is read after the main file; its values win.
const LocalOverridePath = "settings.local.cfg"

// Config holds settings grouped by section.
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// sectionOrder fixes the layout of generated files.
var sectionOrder = []string{
	"Server", "Interpreter", "Session", "Security", "Network",
	"WebSocket", "JWT", "TLS", "Storage", "Examples", "Debug",
}

// Initialize loads configPath (creating it with defaults if missing) and
// applies settings.local.cfg on top when present.
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		if _, statErr := os.Stat(LocalOverridePath); statErr == nil {
			// a broken override leaves the base config in place
			_ = globalConfig.loadFile(LocalOverridePath)
		}
	})
	return err
}

func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		config.createDefaultConfig()
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	if err := config.loadFile(filePath); err != nil {
		return nil, err
	}
	return config, nil
}

// loadFile merges the contents of filePath into c.
func (c *Config) loadFile(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parse(file)
}

// parse reads sections and key/value pairs. Blank lines and lines starting
// with ; or # are skipped; keys outside a section are ignored.
func (c *Config) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	section := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if c.settings[section] == nil {
				c.settings[section] = make(map[string]string)
			}
			continue
		}

		if section == "" {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			c.settings[section][strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return scanner.Err()
}

func (c *Config) createDefaultConfig() {
	c.settings["Server"] = map[string]string{
		"host":                "",
		"port":                "8080",
		"static_dir":          "./static",
		"cleanup_interval":    "5m",
		"shutdown_timeout":    "10s",
		"history_page_limit":  "20",
		"admin_password_hash": "",
	}

	c.settings["Interpreter"] = map[string]string{
		"step_limit":     "100000",
		"max_program_kb": "32",
		"max_run_time":   "10s",
	}

	c.settings["Session"] = map[string]string{
		"max_sessions":          "200",
		"max_sessions_per_ip":   "5",
		"max_inactive_time":     "30m",
		"journal_retention":     "168h",
		"session_cookie_name":   "session_token",
		"session_cookie_secure": "false",
	}

	c.settings["Security"] = map[string]string{
		"max_program_lines":   "2000",
		"rate_limit_runs":     "60",
		"rate_limit_window":   "1m",
		"connections_per_ip":  "10",
		"connection_window":   "1m",
		"reject_control_char": "true",
	}

	c.settings["Network"] = map[string]string{
		"pong_timeout":        "60s",
		"write_wait_timeout":  "10s",
		"max_message_size_kb": "64",
		"max_channel_buffer":  "1024",
	}

	c.settings["WebSocket"] = map[string]string{
		"allowed_origins": "localhost,127.0.0.1",
	}

	c.settings["JWT"] = map[string]string{
		"secret_key":     "",
		"token_lifetime": "24h",
		"issuer":         "retroturtle",
	}

	c.settings["TLS"] = map[string]string{
		"enabled":         "false",
		"mode":            "manual",
		"cert_file":       "certs/server.crt",
		"key_file":        "certs/server.key",
		"domain":          "",
		"email":           "",
		"cache_dir":       "certs/autocert",
		"https_port":      "443",
		"http_redirect":   "true",
		"staging":         "false",
		"min_tls_version": "1.2",
	}

	c.settings["Storage"] = map[string]string{
		"database_file": "data/retroturtle.db",
	}

	c.settings["Examples"] = map[string]string{
		"catalog_file": "",
	}

	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "logs/retroturtle.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		"log_websocket":        "false",
		"log_terminal":         "false",
		"log_auth":             "true",
		"log_session":          "true",
		"log_interpreter":      "true",
		"log_database":         "false",
		"log_security":         "true",
		"log_config":           "true",
		"log_examples":         "false",
		"log_general":          "true",
	}
}

// saveToFile writes every section, known sections first and keys sorted.
func (c *Config) saveToFile() error {
	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	c.write(w)
	return w.Flush()
}

func (c *Config) write(w io.Writer) {
	fmt.Fprint(w, "; RetroTurtle configuration\n; Generated automatically - modify with care\n;\n\n")

	seen := make(map[string]bool, len(c.settings))
	sections := make([]string, 0, len(c.settings))
	for _, name := range sectionOrder {
		if _, ok := c.settings[name]; ok {
			sections = append(sections, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range c.settings {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	sections = append(sections, extra...)

	for _, name := range sections {
		fmt.Fprintf(w, "[%s]\n", name)
		keys := make([]string, 0, len(c.settings[name]))
		for key := range c.settings[name] {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "%s = %s\n", key, c.settings[name][key])
		}
		fmt.Fprintln(w)
	}
}

// GetString returns the raw value or defaultValue.
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	if values, ok := globalConfig.settings[section]; ok {
		if value, ok := values[key]; ok {
			return value
		}
	}
	return defaultValue
}

// GetInt returns an integer value or defaultValue when missing or invalid.
func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(str); err == nil {
		return value
	}
	return defaultValue
}

// GetFloat returns a float value or defaultValue.
func GetFloat(section, key string, defaultValue float64) float64 {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := strconv.ParseFloat(str, 64); err == nil {
		return value
	}
	return defaultValue
}

// GetBool returns a boolean value or defaultValue.
func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}
	return defaultValue
}

// GetDuration parses values such as "30s" or "24h".
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(str); err == nil {
		return value
	}
	return defaultValue
}

// GetStringList splits a comma-separated value, dropping empty entries.
func GetStringList(section, key string) []string {
	var out []string
	for _, part := range strings.Split(GetString(section, key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetSection returns a copy of all key/value pairs in a section.
func GetSection(sectionName string) map[string]string {
	result := make(map[string]string)
	if globalConfig == nil {
		return result
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	for key, value := range globalConfig.settings[sectionName] {
		result[key] = value
	}
	return result
}

// SetString changes a value in memory. Call Save to persist it.
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}

	globalConfig.mu.Lock()
	defer globalConfig.mu.Unlock()

	if globalConfig.settings[section] == nil {
		globalConfig.settings[section] = make(map[string]string)
	}
	globalConfig.settings[section][key] = value
}

// Save writes the current configuration back to its file.
func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()
	return globalConfig.saveToFile()
}
