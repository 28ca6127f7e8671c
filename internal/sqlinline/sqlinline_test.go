package sqlinline

import (
	"regexp"
	"strings"
	"testing"
)

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestQueriesCarryUniqueMarkers(t *testing.T) {
	queries := map[string]string{
		"QSelectProviderCredential": QSelectProviderCredential,
		"QUpsertProviderCredential": QUpsertProviderCredential,
		"QRevokeProviderCredential": QRevokeProviderCredential,
		"QInsertUser":               QInsertUser,
		"QSelectUserByID":           QSelectUserByID,
		"QUpdateUserTier":           QUpdateUserTier,
		"QReserveAndInsertJob":      QReserveAndInsertJob,
		"QSelectJobByID":            QSelectJobByID,
		"QListJobsByUser":           QListJobsByUser,
		"QSelectJobStatus":          QSelectJobStatus,
		"QClaimJob":                 QClaimJob,
		"QResumeJob":                QResumeJob,
		"QResetJob":                 QResetJob,
		"QAttachDraftPrompt":        QAttachDraftPrompt,
		"QAttachGrade":              QAttachGrade,
		"QFinishJob":                QFinishJob,
		"QCancelJob":                QCancelJob,
		"QInsertPrompt":             QInsertPrompt,
		"QSelectPromptByID":         QSelectPromptByID,
		"QListPromptsByJob":         QListPromptsByJob,
		"QInsertModelRun":           QInsertModelRun,
		"QSucceedModelRun":          QSucceedModelRun,
		"QFailModelRun":             QFailModelRun,
		"QInsertImageOutput":        QInsertImageOutput,
		"QListRunsByJob":            QListRunsByJob,
		"QListOutputsByJob":         QListOutputsByJob,
		"QApplyCreditEvent":         QApplyCreditEvent,
		"QSessionReload":            QSessionReload,
		"QSelectBalance":            QSelectBalance,
		"QListCreditEvents":         QListCreditEvents,
		"QSumCreditEvents":          QSumCreditEvents,
		"QSelectReserveEvent":       QSelectReserveEvent,
	}
	seen := map[string]string{}
	for name, q := range queries {
		first := strings.SplitN(strings.TrimSpace(q), "\n", 2)[0]
		if !markerRegexp.MatchString(first) {
			t.Fatalf("%s: missing marker, first line %q", name, first)
		}
		if other, dup := seen[first]; dup {
			t.Fatalf("%s reuses the marker of %s", name, other)
		}
		seen[first] = name
	}
}
