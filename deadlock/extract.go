package deadlock

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pgsleuth/pgsleuth/state"
)

var waitsForRegexp = regexp.MustCompile(`Process (\d+) waits for ([A-Za-z]+Lock) on ([^;]+); blocked by process (\d+)`)
var lockDescriptorRegexp = regexp.MustCompile(`^(\w+)\s*(.*)$`)
var descriptorOfRelationRegexp = regexp.MustCompile(`of relation "?([\w$".]+?)"?(?:\s|$)`)
var descriptorOfDatabaseRegexp = regexp.MustCompile(`of database "?([\w$]+)"?`)
var relationNameRegexp = regexp.MustCompile(`relation "?([A-Za-z_][\w$]*(?:\.[A-Za-z_][\w$]*)?)"?`)
var processContextRegexp = regexp.MustCompile(`Process (\d+):`)
var statementTextRegexp = regexp.MustCompile(`statement:\s*([^\n]+)`)
var applicationNameRegexp = regexp.MustCompile(`application_name[:=]\s*"?([^\s,;"]+)"?`)
var usernameRegexp = regexp.MustCompile(`\buser=([^\s,;]+)`)
var lockRecordRegexp = regexp.MustCompile(`([A-Za-z]+Lock) on (\w+)(?:\s+("?[\w$".()/,]+"?))?\s+(granted|waiting)`)
var processRefRegexp = regexp.MustCompile(`Process (\d+)`)
var sqlStatementStartRegexp = regexp.MustCompile(`(?i)^\s*(SELECT|INSERT|UPDATE|DELETE|WITH|MERGE|LOCK|COPY|TRUNCATE|ALTER|DROP|CREATE)\b`)

// extractedWait - One "Process A waits for X; blocked by process B" triple
type extractedWait struct {
	waiterPid  int32
	blockerPid int32
	mode       state.LockMode
	lockType   state.LockType
	resource   string
	relation   string
	database   string
}

// extractedLockRecord - An explicit "<mode> on <type> <resource> granted|waiting"
// record, attributed to the nearest preceding Process reference
type extractedLockRecord struct {
	pid      int32
	mode     state.LockMode
	lockType state.LockType
	resource string
	relation string
	granted  bool
}

type processContext struct {
	pid             int32
	statement       string
	applicationName string
	username        string
}

type extraction struct {
	waits       []extractedWait
	relations   []string
	contexts    map[int32]*processContext
	contextPids []int32
	lockRecords []extractedLockRecord
}

// extractMessage - Runs the full pattern battery over the raw message.
// Every field is best effort; anything that cannot be located is left
// absent rather than failing the parse.
func extractMessage(message string) *extraction {
	result := &extraction{contexts: make(map[int32]*processContext)}

	for _, parts := range waitsForRegexp.FindAllStringSubmatch(message, -1) {
		waiterPid, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			continue
		}
		blockerPid, err := strconv.ParseInt(parts[4], 10, 32)
		if err != nil {
			continue
		}
		wait := extractedWait{
			waiterPid:  int32(waiterPid),
			blockerPid: int32(blockerPid),
			mode:       state.ParseLockMode(parts[2]),
		}
		wait.lockType, wait.resource, wait.relation, wait.database = parseLockDescriptor(parts[3])
		result.waits = append(result.waits, wait)
	}

	seenRelations := make(map[string]bool)
	for _, parts := range relationNameRegexp.FindAllStringSubmatch(message, -1) {
		name := stripSchemaQualifier(parts[1])
		if name == "" || seenRelations[name] {
			continue
		}
		seenRelations[name] = true
		result.relations = append(result.relations, name)
	}

	extractProcessContexts(message, result)
	extractLockRecords(message, result)

	return result
}

// parseLockDescriptor - Splits the descriptor following "waits for <mode> on"
// into lock type, resource identifier and (when present) relation name,
// e.g. "transaction 456", "relation accounts", "tuple (0,1) of relation x"
func parseLockDescriptor(descriptor string) (lockType state.LockType, resource string, relation string, database string) {
	descriptor = strings.TrimSpace(descriptor)
	if parts := descriptorOfDatabaseRegexp.FindStringSubmatch(descriptor); parts != nil {
		database = parts[1]
	}
	parts := lockDescriptorRegexp.FindStringSubmatch(descriptor)
	if parts == nil {
		return state.LockTypeOther, descriptor, "", database
	}
	lockType = state.ParseLockType(parts[1])
	resource = strings.TrimSpace(parts[2])

	if lockType == state.LockTypeRelation {
		if fields := strings.Fields(resource); len(fields) > 0 {
			relation = stripSchemaQualifier(fields[0])
		}
	} else if ofParts := descriptorOfRelationRegexp.FindStringSubmatch(resource); ofParts != nil {
		relation = stripSchemaQualifier(ofParts[1])
	}
	return
}

// extractProcessContexts - Scopes statement/application_name/user extraction
// to the text between one "Process <pid>:" marker and the next
func extractProcessContexts(message string, result *extraction) {
	markers := processContextRegexp.FindAllStringSubmatchIndex(message, -1)
	for i, marker := range markers {
		pid64, err := strconv.ParseInt(message[marker[2]:marker[3]], 10, 32)
		if err != nil {
			continue
		}
		pid := int32(pid64)

		segmentEnd := len(message)
		if i+1 < len(markers) {
			segmentEnd = markers[i+1][0]
		}
		segment := message[marker[1]:segmentEnd]

		context, ok := result.contexts[pid]
		if !ok {
			context = &processContext{pid: pid}
			result.contexts[pid] = context
			result.contextPids = append(result.contextPids, pid)
		}

		if context.statement == "" {
			if parts := statementTextRegexp.FindStringSubmatch(segment); parts != nil {
				context.statement = strings.TrimSpace(parts[1])
			} else if firstLine := firstNonEmptyLine(segment); sqlStatementStartRegexp.MatchString(firstLine) {
				context.statement = strings.TrimSpace(firstLine)
			}
		}
		if context.applicationName == "" {
			if parts := applicationNameRegexp.FindStringSubmatch(segment); parts != nil {
				context.applicationName = parts[1]
			}
		}
		if context.username == "" {
			if parts := usernameRegexp.FindStringSubmatch(segment); parts != nil {
				context.username = parts[1]
			}
		}
	}
}

// extractLockRecords - Explicit grant/wait records; the owning process is the
// nearest preceding "Process <pid>" reference in the message
func extractLockRecords(message string, result *extraction) {
	processRefs := processRefRegexp.FindAllStringSubmatchIndex(message, -1)
	for _, match := range lockRecordRegexp.FindAllStringSubmatchIndex(message, -1) {
		pid := nearestPrecedingPid(message, processRefs, match[0])
		if pid == 0 {
			continue
		}
		record := extractedLockRecord{
			pid:     pid,
			mode:    state.ParseLockMode(message[match[2]:match[3]]),
			granted: message[match[8]:match[9]] == "granted",
		}
		record.lockType = state.ParseLockType(message[match[4]:match[5]])
		if match[6] >= 0 {
			record.resource = strings.Trim(message[match[6]:match[7]], `"`)
		}
		if record.lockType == state.LockTypeRelation {
			record.relation = stripSchemaQualifier(record.resource)
		}
		result.lockRecords = append(result.lockRecords, record)
	}
}

func nearestPrecedingPid(message string, processRefs [][]int, offset int) int32 {
	var pid int32
	for _, ref := range processRefs {
		if ref[0] >= offset {
			break
		}
		if value, err := strconv.ParseInt(message[ref[2]:ref[3]], 10, 32); err == nil {
			pid = int32(value)
		}
	}
	return pid
}

// stripSchemaQualifier - "public.accounts" -> "accounts"; also drops
// surrounding quotes. Returns "" for tokens that are not table names
// (e.g. bare OIDs).
func stripSchemaQualifier(name string) string {
	name = strings.Trim(name, `"`)
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.Trim(name, `"`)
	if name == "" {
		return ""
	}
	if _, err := strconv.Atoi(name); err == nil {
		return ""
	}
	return name
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
