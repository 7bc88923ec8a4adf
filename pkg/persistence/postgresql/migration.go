package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				webhook_path VARCHAR(255) NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				owner VARCHAR(255) NOT NULL DEFAULT '',
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_workflows_webhook_path ON workflows(webhook_path);
			CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status);
			CREATE INDEX IF NOT EXISTS idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE IF NOT EXISTS executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				payload JSONB,
				result JSONB,
				error_message TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);
			CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at);
		`,
	}
}
