package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions: the full document lives in JSONB, with the
			-- filterable and sortable fields promoted to columns.
			CREATE TABLE workflow_definitions (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				workflow_type VARCHAR(100) NOT NULL,
				category VARCHAR(255),
				owner VARCHAR(255),
				is_active BOOLEAN NOT NULL DEFAULT false,
				usage_count BIGINT NOT NULL DEFAULT 0,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_definitions_type ON workflow_definitions(workflow_type);
			CREATE INDEX idx_workflow_definitions_category ON workflow_definitions(category);
			CREATE INDEX idx_workflow_definitions_owner ON workflow_definitions(owner);
			CREATE INDEX idx_workflow_definitions_is_active ON workflow_definitions(is_active);
			CREATE INDEX idx_workflow_definitions_created_at ON workflow_definitions(created_at);

			-- Workflow executions: version backs the optimistic lock.
			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				definition_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				version BIGINT NOT NULL DEFAULT 0,
				document JSONB NOT NULL,
				start_time TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_executions_definition_id ON workflow_executions(definition_id);
			CREATE INDEX idx_workflow_executions_status ON workflow_executions(status);
			CREATE INDEX idx_workflow_executions_start_time ON workflow_executions(start_time);
		`,
	}
}
