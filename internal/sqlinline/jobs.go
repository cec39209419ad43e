package sqlinline

const QInsertJob = `--sql 91f0f909-c55d-4011-a2c4-56e0c9e33b22
insert into generation_jobs (
  id,
  user_id,
  project_id,
  mode,
  input_asset_id,
  status,
  inputs
)
values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::uuid,
  'queued',
  coalesce($6::jsonb, '{}'::jsonb)
)
returning created_at, updated_at;
`

const QSelectJobByID = `--sql b1d1055c-9d25-42d2-992e-55d90a0bef79
select
  id::text,
  user_id,
  project_id,
  mode,
  input_asset_id::text,
  status,
  coalesce(error, ''),
  cost_units,
  coalesce(output_asset_id::text, ''),
  inputs,
  created_at,
  updated_at,
  started_at
from generation_jobs
where id = $1::uuid
limit 1;
`

const QMarkJobRunning = `--sql 5d4cf5d0-cc28-4ac6-89e0-a6acdc79e9d7
update generation_jobs
set status = 'running',
    started_at = now(),
    updated_at = now()
where id = $1::uuid
  and status = 'queued';
`

const QMarkJobSucceeded = `--sql ae0aac14-89af-45a6-95c2-d74056ed859e
update generation_jobs
set status = 'succeeded',
    cost_units = $2::int,
    output_asset_id = nullif($3::text, '')::uuid,
    updated_at = now()
where id = $1::uuid
  and status = 'running';
`

const QMarkJobFailed = `--sql a0921c5f-97f1-464c-95be-0d96bd390968
update generation_jobs
set status = 'failed',
    error = $2::text,
    updated_at = now()
where id = $1::uuid
  and status in ('queued', 'running');
`

const QListStaleJobs = `--sql 547c41b0-26dd-4400-95a9-d2066f9ae2c7
select
  id::text,
  user_id,
  project_id,
  mode,
  input_asset_id::text,
  status,
  coalesce(error, ''),
  cost_units,
  coalesce(output_asset_id::text, ''),
  inputs,
  created_at,
  updated_at,
  started_at
from generation_jobs
where status in ('queued', 'running')
  and coalesce(started_at, created_at) < $1::timestamptz
order by created_at asc
limit $2::int;
`
