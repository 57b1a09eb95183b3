// Package mailbox implements the mailbox port over IMAP. Every operation
// opens its own connection; the worker never holds a long-lived session.
package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"sorter_server/config"
	"sorter_server/core/port/out"
	"sorter_server/core/service/settings"
	"sorter_server/pkg/logger"
)

type Adapter struct {
	cfg      *config.Config
	settings *settings.Resolver
	log      *logger.Logger
}

func NewAdapter(cfg *config.Config, resolver *settings.Resolver) *Adapter {
	return &Adapter{
		cfg:      cfg,
		settings: resolver,
		log:      logger.WithField("component", "imap_adapter"),
	}
}

var _ out.Mailbox = (*Adapter)(nil)

func (a *Adapter) connect() (*imapclient.Client, error) {
	addr := net.JoinHostPort(a.cfg.IMAPHost, strconv.Itoa(a.cfg.IMAPPort))

	var conn net.Conn
	var err error
	if a.cfg.IMAPUseSSL {
		conn, err = tls.Dial("tcp", addr, &tls.Config{ServerName: a.cfg.IMAPHost})
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	client := imapclient.New(conn, &imapclient.Options{})
	if err := client.Login(a.cfg.IMAPUsername, a.cfg.IMAPPassword).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return client, nil
}

func (a *Adapter) logout(client *imapclient.Client) {
	if err := client.Logout().Wait(); err != nil {
		a.log.WithError(err).Debug("imap logout failed")
		client.Close()
	}
}

// FetchUnseen returns the raw payload of recent unseen messages per
// folder. Messages carrying the protected or processed flag, UIDs in the
// per-folder processed sets and UIDs with a known suggestion are skipped.
// Folder-level failures are logged and skipped.
func (a *Adapter) FetchUnseen(ctx context.Context, folders []string, processed map[string]map[string]bool, suggested map[string]bool) (map[string]map[string][]byte, error) {
	client, err := a.connect()
	if err != nil {
		return nil, err
	}
	defer a.logout(client)

	tags := a.settings.MailboxTags(ctx)
	protected := strings.TrimSpace(tags.Protected)
	processedTag := strings.TrimSpace(tags.Processed)

	payloads := make(map[string]map[string][]byte, len(folders))
	for _, folder := range folders {
		messages, err := a.fetchFolder(client, folder, processed[folder], suggested, protected, processedTag)
		if err != nil {
			a.log.WithError(err).WithField("folder", folder).Warn("could not fetch folder")
			continue
		}
		payloads[folder] = messages
	}
	return payloads, nil
}

func (a *Adapter) fetchFolder(client *imapclient.Client, folder string, processed map[string]bool, suggested map[string]bool, protected, processedTag string) (map[string][]byte, error) {
	if _, err := client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}

	criteria := &imap.SearchCriteria{
		Since: time.Now().UTC().AddDate(0, 0, -a.cfg.SinceDays),
	}
	if a.cfg.ProcessOnlySeen {
		criteria.Flag = []imap.Flag{imap.FlagSeen}
	} else {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", folder, err)
	}
	uids := searchData.AllUIDs()
	if limit := a.cfg.FetchBatchSize; limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	if len(uids) == 0 {
		return map[string][]byte{}, nil
	}

	eligible, err := a.filterByFlags(client, uids, processed, suggested, protected, processedTag)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return map[string][]byte{}, nil
	}
	return a.fetchBodies(client, eligible)
}

// filterByFlags fetches flags only and drops protected, processed and
// already-suggested messages before the expensive body fetch.
func (a *Adapter) filterByFlags(client *imapclient.Client, uids []imap.UID, processed map[string]bool, suggested map[string]bool, protected, processedTag string) ([]imap.UID, error) {
	var uidSet imap.UIDSet
	uidSet.AddNum(uids...)

	fetchCmd := client.Fetch(uidSet, &imap.FetchOptions{Flags: true, UID: true})
	buffers, err := fetchCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch flags: %w", err)
	}

	var eligible []imap.UID
	for _, msg := range buffers {
		uidStr := strconv.FormatUint(uint64(msg.UID), 10)
		if processed[uidStr] || suggested[uidStr] {
			continue
		}
		skip := false
		for _, flag := range msg.Flags {
			name := string(flag)
			if (protected != "" && name == protected) || (processedTag != "" && name == processedTag) {
				skip = true
				break
			}
		}
		if !skip {
			eligible = append(eligible, msg.UID)
		}
	}
	return eligible, nil
}

func (a *Adapter) fetchBodies(client *imapclient.Client, uids []imap.UID) (map[string][]byte, error) {
	var uidSet imap.UIDSet
	uidSet.AddNum(uids...)

	section := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	fetchCmd := client.Fetch(uidSet, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	buffers, err := fetchCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch bodies: %w", err)
	}

	messages := make(map[string][]byte, len(buffers))
	for _, msg := range buffers {
		body := msg.FindBodySection(section)
		if len(body) == 0 {
			continue
		}
		messages[strconv.FormatUint(uint64(msg.UID), 10)] = body
	}
	return messages, nil
}

// MoveMessage moves one message, falling back to copy+delete+expunge on
// servers without MOVE.
func (a *Adapter) MoveMessage(ctx context.Context, uid, target, sourceFolder string) error {
	client, err := a.connect()
	if err != nil {
		return err
	}
	defer a.logout(client)

	src := sourceFolder
	if src == "" {
		src = a.settings.Inbox()
	}
	if _, err := client.Select(src, nil).Wait(); err != nil {
		return fmt.Errorf("select %s: %w", src, err)
	}
	uidSet, err := parseUIDSet(uid)
	if err != nil {
		return err
	}

	if _, err := client.Move(uidSet, target).Wait(); err == nil {
		return nil
	} else {
		a.log.WithError(err).Debug("direct move failed, falling back to copy+delete")
	}

	if _, err := client.Copy(uidSet, target).Wait(); err != nil {
		return fmt.Errorf("copy to %s: %w", target, err)
	}
	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Flags:  []imap.Flag{imap.FlagDeleted},
		Silent: true,
	}
	if err := client.Store(uidSet, storeFlags, nil).Close(); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	if err := client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

// AddTag adds a keyword flag to one message.
func (a *Adapter) AddTag(ctx context.Context, uid, folder, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}
	client, err := a.connect()
	if err != nil {
		return err
	}
	defer a.logout(client)

	target := folder
	if target == "" {
		target = a.settings.Inbox()
	}
	if _, err := client.Select(target, nil).Wait(); err != nil {
		return fmt.Errorf("select %s: %w", target, err)
	}
	uidSet, err := parseUIDSet(uid)
	if err != nil {
		return err
	}
	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Flags:  []imap.Flag{imap.Flag(tag)},
		Silent: true,
	}
	if err := client.Store(uidSet, storeFlags, nil).Close(); err != nil {
		return fmt.Errorf("add flag %s: %w", tag, err)
	}
	return nil
}

// EnsureFolderPath creates every missing segment of the /-joined path,
// translating to the server's hierarchy delimiter, and returns the
// canonical display path.
func (a *Adapter) EnsureFolderPath(ctx context.Context, path string) (string, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return "", fmt.Errorf("invalid folder path %q", path)
	}

	client, err := a.connect()
	if err != nil {
		return "", err
	}
	defer a.logout(client)

	folders, delim, err := listFolders(client)
	if err != nil {
		a.log.WithError(err).Warn("could not list folders before create")
		folders, delim = map[string]bool{}, "/"
	}

	var parts []string
	for _, segment := range segments {
		parts = append(parts, segment)
		display := strings.Join(parts, "/")
		serverName := display
		if delim != "/" && delim != "" {
			serverName = strings.Join(parts, delim)
		}
		if folders[display] || folders[serverName] {
			continue
		}
		if err := client.Create(serverName, nil).Wait(); err != nil {
			return "", fmt.Errorf("create folder %s: %w", display, err)
		}
		folders[display] = true
		folders[serverName] = true
		a.log.WithField("folder", display).Info("created mailbox folder")
	}
	return strings.Join(segments, "/"), nil
}

// ListFolders returns every mailbox name with the hierarchy delimiter
// normalized to "/".
func (a *Adapter) ListFolders(ctx context.Context) ([]string, error) {
	client, err := a.connect()
	if err != nil {
		return nil, err
	}
	defer a.logout(client)

	folders, delim, err := listFolders(client)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(folders))
	seen := make(map[string]bool, len(folders))
	for name := range folders {
		display := name
		if delim != "/" && delim != "" {
			display = strings.ReplaceAll(name, delim, "/")
		}
		if !seen[display] {
			seen[display] = true
			names = append(names, display)
		}
	}
	return names, nil
}

func listFolders(client *imapclient.Client) (map[string]bool, string, error) {
	listCmd := client.List("", "*", nil)
	entries, err := listCmd.Collect()
	if err != nil {
		return nil, "/", fmt.Errorf("list folders: %w", err)
	}
	folders := make(map[string]bool, len(entries))
	delim := "/"
	for _, entry := range entries {
		folders[entry.Mailbox] = true
		if entry.Delim != 0 {
			delim = string(entry.Delim)
		}
	}
	return folders, delim, nil
}

func parseUIDSet(uid string) (imap.UIDSet, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(uid), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid uid %q: %w", uid, err)
	}
	return imap.UIDSetNum(imap.UID(n)), nil
}

func splitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(strings.Trim(strings.TrimSpace(path), "/"), "/") {
		if trimmed := strings.TrimSpace(segment); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}
