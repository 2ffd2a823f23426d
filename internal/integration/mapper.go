package integration

import (
	"github.com/mautops/maintenance-gin/internal/maintenance"
	"github.com/mautops/maintenance-gin/internal/model"
)

func toRecord(m *model.MaintenanceRecordModel, steps []*model.MaintenanceStepModel) *maintenance.Record {
	rec := &maintenance.Record{
		ID:                      m.ID,
		EquipmentID:             m.EquipmentID,
		InitialIssueDescription: m.InitialIssueDescription,
		FinalDescription:        m.FinalDescription,
		ExpectedCompletionDate:  m.ExpectedCompletionDate,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
		Version:                 m.Version,
		Steps:                   make([]*maintenance.Step, 0, len(steps)),
	}
	rec.RestoreClosure(m.ActualCompletionDate)
	for _, s := range steps {
		rec.Steps = append(rec.Steps, toStep(s))
	}
	return rec
}

func toRecordModel(r *maintenance.Record) *model.MaintenanceRecordModel {
	return &model.MaintenanceRecordModel{
		ID:                      r.ID,
		EquipmentID:             r.EquipmentID,
		InitialIssueDescription: r.InitialIssueDescription,
		FinalDescription:        r.FinalDescription,
		ExpectedCompletionDate:  r.ExpectedCompletionDate,
		ActualCompletionDate:    r.ActualCompletionDate(),
		Version:                 r.Version,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func toStep(m *model.MaintenanceStepModel) *maintenance.Step {
	return &maintenance.Step{
		ID:          m.ID,
		RecordID:    m.RecordID,
		Sequence:    m.Sequence,
		Type:        maintenance.StepType(m.StepType),
		Description: m.Description,
		Responsible: maintenance.Responsible{
			ContactID:   m.ResponsibleContactID,
			DisplayName: m.ResponsibleName,
			Phone:       m.ResponsiblePhone,
			Email:       m.ResponsibleEmail,
		},
		FromLocation:    m.FromLocation,
		ToLocation:      m.ToLocation,
		StartDate:       m.StartDate,
		ExpectedEndDate: m.ExpectedEndDate,
		ActualEndDate:   m.ActualEndDate,
		Cost:            m.Cost,
		Notes:           m.Notes,
		IsCompleted:     m.IsCompleted,
		IsFinalStep:     m.IsFinalStep,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toStepModel(s *maintenance.Step) *model.MaintenanceStepModel {
	return &model.MaintenanceStepModel{
		ID:                   s.ID,
		RecordID:             s.RecordID,
		Sequence:             s.Sequence,
		StepType:             string(s.Type),
		Description:          s.Description,
		ResponsibleContactID: s.Responsible.ContactID,
		ResponsibleName:      s.Responsible.DisplayName,
		ResponsiblePhone:     s.Responsible.Phone,
		ResponsibleEmail:     s.Responsible.Email,
		FromLocation:         s.FromLocation,
		ToLocation:           s.ToLocation,
		StartDate:            s.StartDate,
		ExpectedEndDate:      s.ExpectedEndDate,
		ActualEndDate:        s.ActualEndDate,
		Cost:                 s.Cost,
		Notes:                s.Notes,
		IsCompleted:          s.IsCompleted,
		IsFinalStep:          s.IsFinalStep,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func toHandoff(m *model.HandoffEventModel) *maintenance.HandoffEvent {
	return &maintenance.HandoffEvent{
		ID:        m.ID,
		RecordID:  m.RecordID,
		StepID:    m.StepID,
		From:      maintenance.Responsible{ContactID: m.FromContactID, DisplayName: m.FromContactName},
		To:        maintenance.Responsible{ContactID: m.ToContactID, DisplayName: m.ToContactName},
		Reason:    m.Reason,
		Operator:  m.Operator,
		CreatedAt: m.CreatedAt,
	}
}

func toTransition(m *model.StateHistoryModel) *maintenance.Transition {
	return &maintenance.Transition{
		ID:        m.ID,
		RecordID:  m.RecordID,
		StepID:    m.StepID,
		Event:     maintenance.EventKind(m.Event),
		FromState: m.FromState,
		ToState:   m.ToState,
		Reason:    m.Reason,
		Operator:  m.Operator,
		CreatedAt: m.CreatedAt,
	}
}
